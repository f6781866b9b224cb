package parser

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/data-explorer/backend/internal/logger"
	"github.com/data-explorer/backend/internal/models"
	"github.com/marcboeker/go-duckdb"
)

// TableName is the name questions refer to when querying a loaded file.
const TableName = "data"

// DuckSettings tunes each per-file DuckDB database.
type DuckSettings struct {
	Threads     int
	MemoryLimit string
}

// DefaultDuckSettings returns conservative per-file limits.
func DefaultDuckSettings() DuckSettings {
	return DuckSettings{Threads: 2, MemoryLimit: "512MB"}
}

// DuckStore holds one parsed table in a temporary DuckDB file so questions
// can be answered with SQL.
type DuckStore struct {
	db       *sql.DB
	dbPath   string
	columns  []models.Column
	rowCount int
	log      *slog.Logger

	// Semaphore to limit concurrent queries
	querySem chan struct{}
}

// NewDuckStore creates a new DuckDB-backed store in the given temp directory.
func NewDuckStore(tempDir, id string, settings DuckSettings) (*DuckStore, error) {
	dbPath := filepath.Join(tempDir, fmt.Sprintf("table_%s.duckdb", id))
	return NewDuckStoreAtPath(dbPath, settings)
}

// RemoveStaleStores deletes table databases left in tempDir by a previous
// run. Sessions live in memory only, so none of them can be reopened.
func RemoveStaleStores(tempDir string) (int, error) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "table_") {
			continue
		}
		if !strings.HasSuffix(name, ".duckdb") && !strings.HasSuffix(name, ".duckdb.wal") {
			continue
		}
		if err := os.Remove(filepath.Join(tempDir, name)); err == nil && strings.HasSuffix(name, ".duckdb") {
			removed++
		}
	}
	return removed, nil
}

// NewDuckStoreAtPath creates a new DuckDB-backed store at a specific path.
func NewDuckStoreAtPath(dbPath string, settings DuckSettings) (*DuckStore, error) {
	log := logger.Component("duckstore").With("path", dbPath)

	if settings.Threads <= 0 {
		settings.Threads = DefaultDuckSettings().Threads
	}
	if settings.MemoryLimit == "" {
		settings.MemoryLimit = DefaultDuckSettings().MemoryLimit
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", settings.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", settings.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn("pragma failed", "pragma", pragma, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	log.Debug("database opened")
	return &DuckStore{
		db:       sql.OpenDB(connector),
		dbPath:   dbPath,
		log:      log,
		querySem: make(chan struct{}, 3), // Max 3 concurrent queries
	}, nil
}

// Load creates the data table from t and bulk-inserts its rows. Once loaded,
// the database is locked against file and network access.
func (ds *DuckStore) Load(ctx context.Context, t *models.Table) error {
	if ds.columns != nil {
		return fmt.Errorf("table already loaded")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}

	defs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = fmt.Sprintf("%s %s", QuoteIdent(c.Name), sqlType(c.Type))
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))
	if _, err := ds.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	start := time.Now()
	if err := ds.appendRows(ctx, t); err != nil {
		return err
	}

	if _, err := ds.db.ExecContext(ctx, "SET enable_external_access=false"); err != nil {
		return fmt.Errorf("failed to disable external access: %w", err)
	}

	ds.columns = append([]models.Column(nil), t.Columns...)
	ds.rowCount = len(t.Rows)
	ds.log.Info("table loaded", "rows", ds.rowCount, "columns", len(ds.columns), "elapsed", time.Since(start))
	return nil
}

// appendRows writes every row using the native Appender API.
func (ds *DuckStore) appendRows(ctx context.Context, t *models.Table) error {
	conn, err := ds.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(driver.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", TableName)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		values := make([]driver.Value, len(t.Columns))
		for i, row := range t.Rows {
			for j := range values {
				values[j] = row[j]
			}
			if err := appender.AppendRow(values...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}
	return nil
}

// Schema returns the loaded table's columns.
func (ds *DuckStore) Schema() []models.Column {
	return ds.columns
}

// Len returns the number of loaded rows.
func (ds *DuckStore) Len() int {
	return ds.rowCount
}

// Preview returns the first n rows in file order.
func (ds *DuckStore) Preview(ctx context.Context, n int) (*models.Table, error) {
	if n < 0 {
		n = 0
	}
	t, _, err := ds.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", TableName, n), n)
	return t, err
}

// Query runs a read-only statement and returns at most maxRows rows. The
// boolean result reports whether rows were cut off.
func (ds *DuckStore) Query(ctx context.Context, query string, maxRows int) (*models.Table, bool, error) {
	select {
	case ds.querySem <- struct{}{}:
		defer func() { <-ds.querySem }()
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	rows, err := ds.db.QueryContext(ctx, query)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, false, fmt.Errorf("reading result columns: %w", err)
	}

	result := &models.Table{
		Columns: make([]models.Column, len(colTypes)),
		Rows:    make([][]any, 0),
	}
	for i, ct := range colTypes {
		result.Columns[i] = models.Column{Name: ct.Name(), Type: columnTypeOf(ct.DatabaseTypeName())}
	}

	truncated := false
	for rows.Next() {
		if len(result.Rows) >= maxRows {
			truncated = true
			break
		}
		dest := make([]any, len(colTypes))
		ptrs := make([]any, len(colTypes))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, fmt.Errorf("scanning result row: %w", err)
		}
		for i := range dest {
			dest[i] = normalizeValue(dest[i])
		}
		result.Rows = append(result.Rows, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	return result, truncated, nil
}

// Close closes the database and removes the temp file
func (ds *DuckStore) Close() error {
	var err error
	if ds.db != nil {
		err = ds.db.Close()
	}
	if ds.dbPath != "" {
		os.Remove(ds.dbPath)
		os.Remove(ds.dbPath + ".wal")
	}
	return err
}

// QuoteIdent quotes a column or table name for DuckDB.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(t models.ColumnType) string {
	switch t {
	case models.ColumnTypeBoolean:
		return "BOOLEAN"
	case models.ColumnTypeInteger:
		return "BIGINT"
	case models.ColumnTypeDouble:
		return "DOUBLE"
	default:
		return "VARCHAR"
	}
}

func columnTypeOf(dbType string) models.ColumnType {
	t := strings.ToUpper(dbType)
	switch {
	case t == "BOOLEAN":
		return models.ColumnTypeBoolean
	case strings.HasSuffix(t, "INT"), t == "INTEGER", t == "UINTEGER":
		return models.ColumnTypeInteger
	case t == "FLOAT", t == "DOUBLE", strings.HasPrefix(t, "DECIMAL"):
		return models.ColumnTypeDouble
	default:
		return models.ColumnTypeString
	}
}

// normalizeValue maps driver results onto JSON and msgpack friendly values.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64:
		return x
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return new(big.Int).SetUint64(x).String()
		}
		return int64(x)
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return normalizeFloat(x.Float64())
	case []byte:
		return string(x)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format(time.RFC3339)
	case duckdb.Interval:
		return fmt.Sprintf("%d months %d days %d us", x.Months, x.Days, x.Micros)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
