package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nezunotify/notifyctl/internal/misc"
	log "github.com/sirupsen/logrus"
)

const defaultSessionTable = "session_store"

// PostgresStoreConfig captures configuration required to initialise a Postgres-backed session mirror.
type PostgresStoreConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresSessionStore mirrors session files into a table keyed by their
// slash-separated path relative to the session directory.
type PostgresSessionStore struct {
	db   *sql.DB
	cfg  PostgresStoreConfig
	root string
	mu   sync.Mutex
}

// NewPostgresSessionStore opens the database and verifies connectivity.
func NewPostgresSessionStore(ctx context.Context, cfg PostgresStoreConfig, sessionRoot string) (*PostgresSessionStore, error) {
	trimmedDSN := strings.TrimSpace(cfg.DSN)
	if trimmedDSN == "" {
		return nil, fmt.Errorf("postgres store: DSN is required")
	}
	cfg.DSN = trimmedDSN
	cfg.Schema = strings.TrimSpace(cfg.Schema)
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.Table == "" {
		cfg.Table = defaultSessionTable
	}

	root, err := filepath.Abs(strings.TrimSpace(sessionRoot))
	if err != nil {
		return nil, fmt.Errorf("postgres store: resolve session directory: %w", err)
	}
	if err = os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("postgres store: create session directory: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres store: ping database: %w", err)
	}

	return &PostgresSessionStore{db: db, cfg: cfg, root: root}, nil
}

// EnsureSchema creates the schema and table when missing.
func (s *PostgresSessionStore) EnsureSchema(ctx context.Context) error {
	if schema := strings.TrimSpace(s.cfg.Schema); schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("postgres store: create schema: %w", err)
		}
	}
	table := s.fullTableName()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, table)); err != nil {
		return fmt.Errorf("postgres store: create session table: %w", err)
	}
	return nil
}

// Restore ensures the schema and writes every stored row into the session directory.
func (s *PostgresSessionStore) Restore(ctx context.Context) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT id, content FROM %s", s.fullTableName()))
	if err != nil {
		return fmt.Errorf("postgres store: load session files: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	restored := 0
	for rows.Next() {
		var (
			id      string
			payload string
		)
		if err = rows.Scan(&id, &payload); err != nil {
			return fmt.Errorf("postgres store: scan session row: %w", err)
		}
		local, errPath := localSessionPath(s.root, id)
		if errPath != nil {
			log.WithField("id", id).Warn("postgres store: skip session file outside mirror")
			continue
		}
		if err = writeSessionFile(local, []byte(payload)); err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		restored++
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("postgres store: iterate session rows: %w", err)
	}
	log.Debugf("postgres store: restored %d session files", restored)
	return nil
}

// PersistSessionFiles upserts each path; missing files delete their row.
func (s *PostgresSessionStore) PersistSessionFiles(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		id, err := relativeSessionPath(s.root, trimmed)
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(id)))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if err = s.deleteRow(ctx, id); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("postgres store: read session file: %w", err)
		}
		if len(data) == 0 || !json.Valid(data) {
			log.WithField("id", id).Warn("postgres store: skip session file without JSON content")
			continue
		}
		misc.LogSavingCredentials(s.fullTableName() + "/" + id)
		if err = s.upsertRow(ctx, id, data); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresSessionStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresSessionStore) upsertRow(ctx context.Context, id string, data []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
	`, s.fullTableName())
	if _, err := s.db.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("postgres store: upsert %s: %w", id, err)
	}
	return nil
}

func (s *PostgresSessionStore) deleteRow(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.fullTableName())
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("postgres store: delete %s: %w", id, err)
	}
	return nil
}

func (s *PostgresSessionStore) fullTableName() string {
	return qualifiedTableName(s.cfg.Schema, s.cfg.Table)
}

func qualifiedTableName(schema, table string) string {
	if strings.TrimSpace(schema) == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}
