// Package config loads pipeline settings from YAML and CESSATION_*
// environment variables.
package config

import (
	"bytes"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/derive"
	"cessation-pipeline/internal/harmonize"
	"cessation-pipeline/internal/ledger"
)

const envPrefix = "CESSATION_"

// ErrInvalid is returned by Validate.
var ErrInvalid = eris.New("config: invalid")

// SourceConfig selects where reference tables come from. Yearly extracts are
// always read from DataDir.
type SourceConfig struct {
	Driver string `yaml:"driver"` // files or postgres
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
}

// LogConfig configures the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures cmd/server
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config is the full pipeline configuration
type Config struct {
	DataDir        string           `yaml:"data_dir"`
	Years          []int            `yaml:"years"`
	ExtractPattern string           `yaml:"extract_pattern"`
	Tables         harmonize.Tables `yaml:"tables"`
	Source         SourceConfig     `yaml:"source"`
	Output         artifact.Config  `yaml:"output"`
	Ledger         ledger.Config    `yaml:"ledger"`
	Filters        []derive.Rule    `yaml:"filters"`
	Log            LogConfig        `yaml:"log"`
	Server         ServerConfig     `yaml:"server"`
}

// Default returns the stock configuration
func Default() Config {
	h := harmonize.DefaultConfig()
	return Config{
		DataDir:        "./data",
		Years:          h.Years,
		ExtractPattern: h.ExtractPattern,
		Tables:         h.Tables,
		Source:         SourceConfig{Driver: "files", Schema: "public"},
		Output:         artifact.Config{Driver: artifact.DriverFilesystem, FSRoot: "./output"},
		Ledger:         ledger.Config{Driver: ledger.DriverNone},
		Filters:        derive.DefaultRules(),
		Log:            LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:           ":8001",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, eris.Wrapf(err, "config: read %s", path)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, eris.Wrapf(err, "config: parse %s", path)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CESSATION_* variables found through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("DATA_DIR", &c.DataDir)
	str("EXTRACT_PATTERN", &c.ExtractPattern)
	str("SOURCE_DRIVER", &c.Source.Driver)
	str("SOURCE_DSN", &c.Source.DSN)
	str("SOURCE_SCHEMA", &c.Source.Schema)
	str("FS_ROOT", &c.Output.FSRoot)
	str("S3_BUCKET", &c.Output.S3.Bucket)
	str("S3_REGION", &c.Output.S3.Region)
	str("S3_PREFIX", &c.Output.S3.Prefix)
	str("S3_ENDPOINT", &c.Output.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.Output.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.Output.S3.SecretAccessKey)
	str("LEDGER_PATH", &c.Ledger.Path)
	str("LEDGER_DSN", &c.Ledger.DSN)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ADDR", &c.Server.Addr)

	if v, ok := lookup(envPrefix + "BLOB_DRIVER"); ok {
		c.Output.Driver = artifact.Driver(v)
	}
	if v, ok := lookup(envPrefix + "LEDGER_DRIVER"); ok {
		c.Ledger.Driver = ledger.Driver(v)
	}
	if v, ok := lookup(envPrefix + "S3_PATH_STYLE"); ok {
		c.Output.S3.PathStyle = strings.EqualFold(v, "true") || v == "1"
	}
	if v, ok := lookup(envPrefix + "ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v, ok := lookup(envPrefix + "YEARS"); ok {
		years, err := ParseYears(v)
		if err != nil {
			return eris.Wrapf(err, "config: %sYEARS", envPrefix)
		}
		c.Years = years
	}
	return nil
}

// ParseYears reads "2011-2020" or "2011,2012,2015"
func ParseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if lo, hi, ok := strings.Cut(s, "-"); ok {
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, eris.Wrapf(err, "year range %q", s)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, eris.Wrapf(err, "year range %q", s)
		}
		if to < from {
			return nil, eris.Errorf("year range %q is reversed", s)
		}
		years := make([]int, 0, to-from+1)
		for y := from; y <= to; y++ {
			years = append(years, y)
		}
		return years, nil
	}
	var years []int
	for _, part := range splitList(s) {
		y, err := strconv.Atoi(part)
		if err != nil {
			return nil, eris.Wrapf(err, "year %q", part)
		}
		years = append(years, y)
	}
	return years, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks driver names and the settings each driver needs
func (c Config) Validate() error {
	var problems []string
	if len(c.Years) == 0 {
		problems = append(problems, "no survey years")
	}
	for _, y := range c.Years {
		if y > derive.MaxYear {
			problems = append(problems, "year "+strconv.Itoa(y)+" is after "+strconv.Itoa(derive.MaxYear))
		}
	}
	if !strings.Contains(c.ExtractPattern, "%d") {
		problems = append(problems, "extract_pattern must contain %d")
	}
	switch c.Source.Driver {
	case "", "files":
	case "postgres":
		if c.Source.DSN == "" {
			problems = append(problems, "source.dsn required for postgres")
		}
	default:
		problems = append(problems, "unknown source driver "+strconv.Quote(c.Source.Driver))
	}
	switch c.Output.Driver {
	case "", artifact.DriverFilesystem, artifact.DriverMemory:
	case artifact.DriverS3:
		if c.Output.S3.Bucket == "" {
			problems = append(problems, "output.s3.bucket required for s3")
		}
	default:
		problems = append(problems, "unknown blob driver "+strconv.Quote(string(c.Output.Driver)))
	}
	switch c.Ledger.Driver {
	case "", ledger.DriverNone, ledger.DriverSQLite:
	case ledger.DriverPostgres:
		if c.Ledger.DSN == "" {
			problems = append(problems, "ledger.dsn required for postgres")
		}
	default:
		problems = append(problems, "unknown ledger driver "+strconv.Quote(string(c.Ledger.Driver)))
	}
	for _, r := range c.Filters {
		if r.Name == "" || r.Expr == "" {
			problems = append(problems, "filter rules need a name and an expr")
			break
		}
	}
	if len(problems) > 0 {
		return eris.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Harmonize returns the harmonizer settings
func (c Config) Harmonize() harmonize.Config {
	h := harmonize.DefaultConfig()
	h.Years = c.Years
	h.ExtractPattern = c.ExtractPattern
	h.Tables = c.Tables
	return h
}
