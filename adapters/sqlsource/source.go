// Package sqlsource loads the monitored dataset by running a query against a
// SQL database.
package sqlsource

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"dqmon/domain/core"
	"dqmon/domain/quality"
	"dqmon/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cast"
)

// Config selects the database and the query producing the dataset
type Config struct {
	Driver           string `json:"driver" mapstructure:"driver"`
	ConnectionString string `json:"connection_string" mapstructure:"connection_string"`
	Query            string `json:"query" mapstructure:"query"`
}

// DriverName maps config spellings to registered database/sql driver names
func DriverName(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pq":
		return "postgres"
	default:
		return driver
	}
}

// Source runs one query per Load
type Source struct {
	db     *sqlx.DB
	driver string
	query  string
}

var _ ports.DatasetSource = (*Source)(nil)

// Open prepares a connection pool. No connection is made until Load, so an
// unreachable database fails the cycle rather than startup.
func Open(cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	driver := DriverName(cfg.Driver)
	db, err := sqlx.Open(driver, cfg.ConnectionString)
	if err != nil {
		return nil, core.NewLoadError(driver, err)
	}
	return New(db, cfg.Query), nil
}

// New wraps an existing connection
func New(db *sqlx.DB, query string) *Source {
	return &Source{db: db, driver: db.DriverName(), query: query}
}

// Name identifies the source in reports
func (s *Source) Name() string {
	return "sql:" + s.driver
}

// DB returns the underlying connection
func (s *Source) DB() *sqlx.DB {
	return s.db
}

// Close closes the connection
func (s *Source) Close() error {
	return s.db.Close()
}

// Load runs the query and converts the result set into a dataset
func (s *Source) Load(ctx context.Context) (*quality.Dataset, error) {
	rows, err := s.db.QueryxContext(ctx, s.query)
	if err != nil {
		return nil, core.NewLoadError(s.Name(), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, core.NewLoadError(s.Name(), err)
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, core.NewLoadError(s.Name(), err)
	}
	dbTypes := make([]string, len(colTypes))
	for i, ct := range colTypes {
		dbTypes[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	var out []quality.Row
	for rows.Next() {
		cells, err := rows.SliceScan()
		if err != nil {
			return nil, core.NewLoadError(s.Name(), err)
		}
		row := make(quality.Row, len(columns))
		for i, col := range columns {
			v, err := ToValue(cells[i], dbTypes[i])
			if err != nil {
				return nil, core.NewLoadError(s.Name(), fmt.Errorf("column %q: %w", col, err))
			}
			row[col] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewLoadError(s.Name(), err)
	}

	ds, err := quality.NewDataset(columns, out)
	if err != nil {
		return nil, core.NewLoadError(s.Name(), err)
	}
	return ds, nil
}

// ToValue converts a scanned driver value into a cell. NUMERIC and DECIMAL
// text is parsed as float; booleans and times are kept as strings. NaN and
// infinite floats become nulls.
func ToValue(raw any, dbType string) (quality.Value, error) {
	switch v := raw.(type) {
	case nil:
		return quality.NewNullValue(), nil
	case int64, int32, int16, int8, int, uint32, uint16, uint8:
		i, err := cast.ToInt64E(v)
		if err != nil {
			return quality.Value{}, err
		}
		return quality.NewIntValue(i), nil
	case float64, float32:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return quality.Value{}, err
		}
		return floatValue(f), nil
	case bool:
		return quality.NewStringValue(cast.ToString(v)), nil
	case time.Time:
		return quality.NewStringValue(v.UTC().Format(time.RFC3339Nano)), nil
	case []byte:
		return textValue(string(v), dbType)
	case string:
		return textValue(v, dbType)
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return quality.Value{}, fmt.Errorf("unsupported driver value %T", raw)
		}
		return quality.NewStringValue(s), nil
	}
}

func floatValue(f float64) quality.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return quality.NewNullValue()
	}
	return quality.NewFloatValue(f)
}

func textValue(s, dbType string) (quality.Value, error) {
	switch {
	case strings.HasPrefix(dbType, "NUMERIC"), strings.HasPrefix(dbType, "DECIMAL"):
		f, err := cast.ToFloat64E(s)
		if err != nil {
			return quality.Value{}, fmt.Errorf("invalid %s %q: %w", dbType, s, err)
		}
		return floatValue(f), nil
	case dbType == "INT8", dbType == "INT4", dbType == "INT2", dbType == "INTEGER", dbType == "BIGINT":
		i, err := cast.ToInt64E(s)
		if err != nil {
			return quality.Value{}, fmt.Errorf("invalid %s %q: %w", dbType, s, err)
		}
		return quality.NewIntValue(i), nil
	default:
		return quality.NewStringValue(s), nil
	}
}
