package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rushteam/survkit/core"
)

// SQLiteStore 是 SQLite 实现的 HistoryStore，单机持久化。
// 表结构与历史预测表一致：识别字段 + 结果 + 完整 JSON。
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id           TEXT PRIMARY KEY,
	subject      TEXT NOT NULL DEFAULT '',
	label        INTEGER NOT NULL,
	prob_survive REAL NOT NULL,
	prob_die     REAL NOT NULL,
	confidence   TEXT NOT NULL,
	source       TEXT NOT NULL,
	entry        TEXT NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

// NewSQLiteStore 打开（必要时创建）数据库文件。path 为 ":memory:" 时使用内存库。
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// 内存库每个连接是独立的数据库
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Name() string { return "sqlite" }

func (s *SQLiteStore) Save(ctx context.Context, e *core.HistoryEntry) error {
	if err := checkEntry(e); err != nil {
		return err
	}
	if e.Result == nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: entry has no result")
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO predictions
			(id, subject, label, prob_survive, prob_die, confidence, source, entry, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Subject, e.Result.Label, e.Result.ProbSurvive, e.Result.ProbDie,
		e.Result.Tier.String(), string(e.Result.Source), string(data), e.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT entry FROM predictions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	return decodeEntry([]byte(data))
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*core.HistoryEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT entry FROM predictions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	out := make([]*core.HistoryEntry, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		e, err := decodeEntry([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune 删除早于 before 的记录，返回删除条数
func (s *SQLiteStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM predictions WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ core.HistoryStore = (*SQLiteStore)(nil)
