package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/funnyzak/pagemock/internal/config"
	"github.com/funnyzak/pagemock/internal/logger"
	"github.com/funnyzak/pagemock/pkg/mock"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"

	selectColumns = "SELECT id, timestamp_ns, method, url, resource_type, headers_json, body, outcome, mock_id, mock_name, status, response_size, error, duration_us FROM events "
)

type sqliteStore struct {
	db  *sql.DB
	cfg *config.JournalConfig
	log logger.Logger
}

func newSQLiteStore(cfg *config.JournalConfig, log logger.Logger) (Store, error) {
	path := cfg.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare sqlite directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(absPath))
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %s: %w", stmt, err)
		}
	}

	store := &sqliteStore{db: db, cfg: cfg, log: log}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("Journal opened", "path", absPath)
	return store, nil
}

func (s *sqliteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    timestamp_ns INTEGER NOT NULL,
    method TEXT NOT NULL,
    url TEXT NOT NULL,
    resource_type TEXT,
    headers_json TEXT,
    body BLOB,
    outcome TEXT NOT NULL,
    mock_id TEXT,
    mock_name TEXT,
    status INTEGER,
    response_size INTEGER,
    error TEXT,
    duration_us INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp_ns DESC);
CREATE INDEX IF NOT EXISTS idx_events_outcome_ts ON events(outcome, timestamp_ns DESC);
`
	_, err := s.db.Exec(schema)
	return err
}

func (s *sqliteStore) Record(ev mock.Event) (*Record, error) {
	rec := FromEvent(ev)
	if strings.TrimSpace(rec.ID) == "" {
		rec.ID = fmt.Sprintf("EVT-%d", time.Now().UnixNano())
	}
	ts := rec.Timestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.Timestamp = ts

	headers := rec.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("marshal headers: %w", err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insertSQL := `INSERT OR REPLACE INTO events (
        id, timestamp_ns, method, url, resource_type, headers_json, body,
        outcome, mock_id, mock_name, status, response_size, error, duration_us
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insertSQL,
		rec.ID,
		ts.UnixNano(),
		rec.Method,
		rec.URL,
		rec.ResourceType,
		string(headersJSON),
		rec.Body,
		rec.Outcome,
		rec.MockID,
		rec.MockName,
		rec.Status,
		rec.ResponseSize,
		rec.Error,
		ev.Duration.Microseconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}

	if err = s.prune(ctx, tx); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *sqliteStore) prune(ctx context.Context, tx *sql.Tx) error {
	if s.cfg.Retention > 0 {
		cutoff := time.Now().Add(-s.cfg.Retention).UTC().UnixNano()
		if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE timestamp_ns < ?", cutoff); err != nil {
			return fmt.Errorf("prune by retention: %w", err)
		}
	}
	if s.cfg.MaxRecords > 0 {
		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM events").Scan(&count); err != nil {
			return fmt.Errorf("count records: %w", err)
		}
		if excess := count - s.cfg.MaxRecords; excess > 0 {
			if _, err := tx.ExecContext(ctx, "DELETE FROM events WHERE id IN (SELECT id FROM events ORDER BY timestamp_ns ASC LIMIT ?)", excess); err != nil {
				return fmt.Errorf("prune max records: %w", err)
			}
		}
	}
	return nil
}

func (s *sqliteStore) List(opts ListOptions) ([]*Record, int, error) {
	ctx := context.Background()
	where, args := buildFilters(opts)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM events "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := strings.Builder{}
	query.WriteString(selectColumns)
	query.WriteString(where)
	query.WriteString(" ORDER BY timestamp_ns DESC")

	listArgs := append([]interface{}{}, args...)
	if opts.Limit > 0 {
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query.WriteString(" LIMIT ? OFFSET ?")
		listArgs = append(listArgs, opts.Limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *sqliteStore) Get(id string) (*Record, error) {
	row := s.db.QueryRowContext(context.Background(), selectColumns+"WHERE id = ?", id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *sqliteStore) Stats() (*Stats, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT outcome, COUNT(1) FROM events GROUP BY outcome")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{ByOutcome: make(map[string]int)}
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		stats.ByOutcome[outcome] = count
		stats.Total += count
	}
	return stats, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanRecord(scanner interface {
	Scan(dest ...interface{}) error
}) (*Record, error) {
	var (
		rec          Record
		ts           int64
		resourceType sql.NullString
		headersJSON  sql.NullString
		body         []byte
		mockID       sql.NullString
		mockName     sql.NullString
		status       sql.NullInt64
		responseSize sql.NullInt64
		errMsg       sql.NullString
		durationUs   sql.NullInt64
	)

	if err := scanner.Scan(
		&rec.ID,
		&ts,
		&rec.Method,
		&rec.URL,
		&resourceType,
		&headersJSON,
		&body,
		&rec.Outcome,
		&mockID,
		&mockName,
		&status,
		&responseSize,
		&errMsg,
		&durationUs,
	); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &headers); err != nil {
			headers = map[string]string{}
		}
	}

	rec.Timestamp = time.Unix(0, ts).UTC()
	rec.ResourceType = resourceType.String
	rec.Headers = headers
	rec.Body = append([]byte(nil), body...)
	rec.MockID = mockID.String
	rec.MockName = mockName.String
	rec.Status = int(status.Int64)
	rec.ResponseSize = int(responseSize.Int64)
	rec.Error = errMsg.String
	rec.DurationMs = float64(durationUs.Int64) / 1000
	return &rec, nil
}

func buildFilters(opts ListOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if method := strings.TrimSpace(opts.Method); method != "" {
		clauses = append(clauses, "UPPER(method) = UPPER(?)")
		args = append(args, method)
	}

	if outcome := strings.TrimSpace(opts.Outcome); outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, strings.ToLower(outcome))
	}

	if search := strings.TrimSpace(strings.ToLower(opts.Search)); search != "" {
		like := fmt.Sprintf("%%%s%%", search)
		clauses = append(clauses, "(LOWER(url) LIKE ? OR LOWER(mock_name) LIKE ? OR LOWER(headers_json) LIKE ?)")
		args = append(args, like, like, like)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}
