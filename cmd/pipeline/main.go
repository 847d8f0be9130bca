// Command pipeline runs the cessation coverage pipeline once, or derives the
// coverage-combination table from an existing individual-level artifact.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/combos"
	"cessation-pipeline/internal/config"
	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/logging"
	"cessation-pipeline/internal/pipeline"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

const usage = `usage: pipeline <command> [flags]

commands:
  run      harmonize, derive and aggregate; write every artifact
  combos   count states by coverage combination from an individual-level CSV
`

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	switch args[0] {
	case "run":
		return runCmd(ctx, args[1:], stdout, stderr)
	case "combos":
		return combosCmd(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
	return 2
}

func runCmd(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to pipeline yaml")
	dataDir := fs.String("data", "", "input directory (overrides config)")
	outDir := fs.String("out", "", "output directory for the fs blob driver (overrides config)")
	years := fs.String("years", "", `survey years, "2011-2020" or "2014,2015"`)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *outDir != "" {
		cfg.Output.FSRoot = *outDir
	}
	if *years != "" {
		if cfg.Years, err = config.ParseYears(*years); err != nil {
			fmt.Fprintf(stderr, "years: %v\n", err)
			return 2
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "logging: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	rt, err := pipeline.Setup(ctx, cfg, nil, log)
	if err != nil {
		log.Error("pipeline: setup failed", zap.Error(err))
		return 1
	}
	defer func() { _ = rt.Close() }()

	m, err := rt.Pipeline.Run(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "run failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "run %s: %d respondents, %d analytic state-years, %d artifacts\n",
		m.RunID, m.Counts.Respondents, m.Counts.Focal, len(m.Artifacts)+1)
	return 0
}

func combosCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("combos", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", pipeline.IndividualLevel, "individual-level CSV")
	out := fs.String("out", pipeline.Combinations, `output CSV ("-" for stdout)`)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := writeCombos(*in, *out, stdout); err != nil {
		fmt.Fprintf(stderr, "combos: %v\n", err)
		return 1
	}
	return 0
}

func writeCombos(in, out string, stdout io.Writer) (err error) {
	file, err := os.Open(in)
	if err != nil {
		return eris.Wrapf(err, "open %s", in)
	}
	defer func() { _ = file.Close() }()
	df, err := frame.ReadCSV(file, in)
	if err != nil {
		return err
	}
	counts, err := combos.CountByYear(df)
	if err != nil {
		return err
	}

	w := stdout
	if out != "-" {
		var f *os.File
		f, err = os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "create %s", out)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = eris.Wrapf(cerr, "close %s", out)
			}
		}()
		w = f
	}
	if err = frame.WriteCSV(w, counts.Frame()); err != nil {
		return eris.Wrapf(err, "write %s", out)
	}
	return nil
}
