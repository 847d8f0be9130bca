package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

// PostgresConfig holds connection details
type PostgresConfig struct {
	DSN    string
	Schema string // defaults to "public"
}

// Postgres reads reference tables from a PostgreSQL database
type Postgres struct {
	db     *sql.DB
	schema string
	tables map[string]bool
}

// OpenPostgres connects and caches the table whitelist. Table names are only
// ever queried when present in information_schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "source: open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "source: ping postgres")
	}
	p := &Postgres{db: db, schema: cfg.Schema}
	if p.schema == "" {
		p.schema = "public"
	}
	if err := p.refresh(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the connection pool
func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// ListTables returns the tables visible in the configured schema
func (p *Postgres) ListTables(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name;
	`
	rows, err := p.db.QueryContext(ctx, query, p.schema)
	if err != nil {
		return nil, eris.Wrap(err, "source: list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, eris.Wrap(err, "source: scan table name")
		}
		tables = append(tables, tableName)
	}
	return tables, eris.Wrap(rows.Err(), "source: list tables")
}

func (p *Postgres) refresh(ctx context.Context) error {
	tables, err := p.ListTables(ctx)
	if err != nil {
		return err
	}
	p.tables = make(map[string]bool, len(tables))
	for _, t := range tables {
		p.tables[t] = true
	}
	return nil
}

// Load implements Source
func (p *Postgres) Load(ctx context.Context, table string) (*frame.DataFrame, error) {
	if !p.tables[table] {
		return nil, eris.Wrapf(ErrNotFound, "%s.%s", p.schema, table)
	}
	query := fmt.Sprintf("SELECT * FROM %s.%s", pq.QuoteIdentifier(p.schema), pq.QuoteIdentifier(table))
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "source: query %s", table)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrapf(err, "source: columns of %s", table)
	}
	df := frame.New(table, columns)

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, eris.Wrapf(err, "source: scan %s", table)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			record[i] = cellString(v)
		}
		df.Rows = append(df.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "source: read %s", table)
	}
	return df, nil
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return frame.FormatFloat(val)
	case bool:
		return frame.FormatBool(val)
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprint(val)
	}
}
