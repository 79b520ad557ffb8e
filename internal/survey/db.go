// Package survey reads the roadside video survey database and writes the
// per-run extract files: one GeoJSON track per video, trees.csv and
// vcuts.csv.
package survey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/guaminsects/crbmap/internal/config"
)

// ErrSurveyNotFound is returned when a sqlite survey file does not exist.
// The driver would otherwise create an empty database in its place.
var ErrSurveyNotFound = errors.New("survey database not found")

// Open connects to the survey database described by params and pings it.
func Open(ctx context.Context, params *config.Parameters) (*sql.DB, error) {
	dsn, err := DSN(params)
	if err != nil {
		return nil, err
	}
	if params.DBDriver == config.DriverSQLite {
		if err := checkSQLiteFile(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(params.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open survey database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Minute * 5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to survey database %s: %w", params.Redacted(), err)
	}
	return db, nil
}

// checkSQLiteFile stats the file a sqlite DSN names, with or without the
// file: prefix and query options.
func checkSQLiteFile(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSurveyNotFound, path)
		}
		return fmt.Errorf("failed to stat survey database: %w", err)
	}
	return nil
}

// DSN builds the driver connection string. DBURL is host[:port]/database
// for mysql and postgres, optionally followed by ?options, and a file path
// for sqlite.
func DSN(params *config.Parameters) (string, error) {
	switch params.DBDriver {
	case config.DriverSQLite:
		return params.DBURL, nil
	case config.DriverMySQL, config.DriverPostgres:
	default:
		return "", fmt.Errorf("unsupported survey database driver %q", params.DBDriver)
	}

	host, name, query, err := splitDBURL(params.DBURL)
	if err != nil {
		return "", err
	}

	if params.DBDriver == config.DriverMySQL {
		cfg := mysql.NewConfig()
		cfg.User = params.DBUsername
		cfg.Passwd = params.DBPassword
		cfg.Net = "tcp"
		cfg.Addr = withPort(host, "3306")
		cfg.DBName = name
		cfg.ParseTime = true
		if len(query) > 0 {
			cfg.Params = make(map[string]string, len(query))
			for k := range query {
				cfg.Params[k] = query.Get(k)
			}
		}
		return cfg.FormatDSN(), nil
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(params.DBUsername, params.DBPassword),
		Host:     host,
		Path:     "/" + name,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}

func splitDBURL(raw string) (host, name string, query url.Values, err error) {
	raw = strings.TrimSpace(raw)
	for _, scheme := range []string{"mysql://", "postgres://", "postgresql://"} {
		raw = strings.TrimPrefix(raw, scheme)
	}

	rest := raw
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		rest = raw[:i]
		query, err = url.ParseQuery(raw[i+1:])
		if err != nil {
			return "", "", nil, fmt.Errorf("invalid DBURL options: %w", err)
		}
	}

	host, name, ok := strings.Cut(rest, "/")
	if !ok || host == "" || name == "" {
		return "", "", nil, fmt.Errorf("invalid DBURL %q: want host[:port]/database", raw)
	}
	return host, name, query, nil
}

func withPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}

// placeholders returns n bind parameters for an IN list, numbered from
// start for postgres.
func placeholders(driver string, start, n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if driver == config.DriverPostgres {
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(start + i))
		} else {
			sb.WriteString("?")
		}
	}
	return sb.String()
}
