package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

const (
	sqliteDriverName = "sqlite"

	selectColumns = `SELECT id, scenario, step, expectation, timestamp_ns, method, path, query,
    remote_addr, user_agent, headers_json, body, content_type, is_binary, status,
    response_size, outcome, failure, duration_ns FROM exchanges `
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
	log.Debug("Journal opened", "driver", sqliteDriverName, "path", absPath)
	return store, nil
}

func (s *sqliteStore) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS exchanges (
    id TEXT PRIMARY KEY,
    scenario TEXT NOT NULL,
    step INTEGER NOT NULL,
    expectation TEXT,
    timestamp_ns INTEGER NOT NULL,
    method TEXT NOT NULL,
    path TEXT,
    query TEXT,
    remote_addr TEXT,
    user_agent TEXT,
    headers_json TEXT,
    body BLOB,
    content_type TEXT,
    is_binary INTEGER,
    status INTEGER,
    response_size INTEGER,
    outcome TEXT NOT NULL,
    failure TEXT,
    duration_ns INTEGER
);
CREATE INDEX IF NOT EXISTS idx_exchanges_ts ON exchanges(timestamp_ns DESC);
CREATE INDEX IF NOT EXISTS idx_exchanges_scenario_step ON exchanges(scenario, step);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

func (s *sqliteStore) Record(ex *exchange.Exchange) (err error) {
	if ex == nil {
		return errors.New("exchange is nil")
	}
	ctx := context.Background()

	ts := ex.Timestamp.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	headers := ex.Headers
	if headers == nil {
		headers = http.Header{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO exchanges (
        id, scenario, step, expectation, timestamp_ns, method, path, query,
        remote_addr, user_agent, headers_json, body, content_type, is_binary,
        status, response_size, outcome, failure, duration_ns
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.ID,
		ex.Scenario,
		ex.Step,
		ex.Expectation,
		ts.UnixNano(),
		ex.Method,
		ex.Path,
		ex.Query,
		ex.RemoteAddr,
		ex.UserAgent,
		string(headersJSON),
		ex.Body,
		ex.ContentType,
		boolToInt(ex.IsBinary),
		ex.Status,
		ex.ResponseSize,
		string(ex.Outcome),
		ex.Failure,
		ex.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}

	if err = s.prune(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) prune(ctx context.Context, tx *sql.Tx) error {
	if s.cfg.MaxRecords <= 0 {
		return nil
	}
	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM exchanges").Scan(&count); err != nil {
		return fmt.Errorf("count exchanges: %w", err)
	}
	if excess := count - s.cfg.MaxRecords; excess > 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM exchanges WHERE id IN (SELECT id FROM exchanges ORDER BY timestamp_ns ASC LIMIT ?)", excess); err != nil {
			return fmt.Errorf("prune max records: %w", err)
		}
	}
	return nil
}

func (s *sqliteStore) List(opts ListOptions) ([]*exchange.Exchange, int, error) {
	ctx := context.Background()
	where, args := buildFilters(opts)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM exchanges "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := strings.Builder{}
	query.WriteString(selectColumns)
	query.WriteString(where)
	query.WriteString(" ORDER BY timestamp_ns DESC, step DESC")

	listArgs := append([]interface{}{}, args...)
	if opts.Limit > 0 {
		offset := opts.Offset
		if offset < 0 {
			offset = 0
		}
		query.WriteString(" LIMIT ? OFFSET ?")
		listArgs = append(listArgs, opts.Limit, offset)
	} else if opts.Offset > 0 {
		query.WriteString(" LIMIT -1 OFFSET ?")
		listArgs = append(listArgs, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []*exchange.Exchange
	for rows.Next() {
		ex, err := scanExchange(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (s *sqliteStore) Get(id string) (*exchange.Exchange, error) {
	row := s.db.QueryRowContext(context.Background(), selectColumns+"WHERE id = ?", id)
	ex, err := scanExchange(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ex, nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanExchange(scanner interface {
	Scan(dest ...interface{}) error
}) (*exchange.Exchange, error) {
	var (
		ex          exchange.Exchange
		expectation sql.NullString
		ts          int64
		path        sql.NullString
		query       sql.NullString
		remote      sql.NullString
		userAgent   sql.NullString
		headersJSON sql.NullString
		body        []byte
		contentType sql.NullString
		isBinary    sql.NullInt64
		status      sql.NullInt64
		size        sql.NullInt64
		outcome     string
		failure     sql.NullString
		duration    sql.NullInt64
	)

	if err := scanner.Scan(
		&ex.ID,
		&ex.Scenario,
		&ex.Step,
		&expectation,
		&ts,
		&ex.Method,
		&path,
		&query,
		&remote,
		&userAgent,
		&headersJSON,
		&body,
		&contentType,
		&isBinary,
		&status,
		&size,
		&outcome,
		&failure,
		&duration,
	); err != nil {
		return nil, err
	}

	header := http.Header{}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &header); err != nil {
			header = http.Header{}
		}
	}

	ex.Expectation = expectation.String
	ex.Timestamp = time.Unix(0, ts).UTC()
	ex.Path = path.String
	ex.Query = query.String
	ex.RemoteAddr = remote.String
	ex.UserAgent = userAgent.String
	ex.Headers = header
	ex.Body = append([]byte(nil), body...)
	ex.ContentType = contentType.String
	ex.IsBinary = isBinary.Int64 == 1
	ex.Status = int(status.Int64)
	ex.ResponseSize = size.Int64
	ex.Outcome = exchange.Outcome(outcome)
	ex.Failure = failure.String
	ex.Duration = time.Duration(duration.Int64)
	return &ex, nil
}

func buildFilters(opts ListOptions) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if method := strings.TrimSpace(opts.Method); method != "" {
		clauses = append(clauses, "UPPER(method) = UPPER(?)")
		args = append(args, method)
	}
	if opts.Scenario != "" {
		clauses = append(clauses, "scenario = ?")
		args = append(args, opts.Scenario)
	}
	if opts.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(opts.Outcome))
	}
	if search := strings.TrimSpace(strings.ToLower(opts.Search)); search != "" {
		like := fmt.Sprintf("%%%s%%", search)
		clauses = append(clauses, "(LOWER(path) LIKE ? OR LOWER(query) LIKE ? OR LOWER(remote_addr) LIKE ? OR LOWER(user_agent) LIKE ? OR LOWER(expectation) LIKE ? OR LOWER(failure) LIKE ? OR LOWER(headers_json) LIKE ?)")
		args = append(args, like, like, like, like, like, like, like)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
