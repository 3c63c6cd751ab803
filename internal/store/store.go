package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a scenario, conversation or event does not exist.
var ErrNotFound = errors.New("not found")

// Store owns the SQLite handle and hands out repositories.
type Store struct {
	db *sql.DB
}

// Open connects to the SQLite database at path, applies pragmas and
// migrates the schema. The settings row is created on first open.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	// Every unit of work runs inside a transaction on this single
	// connection, which serializes writers inside the process.
	db.SetMaxOpenConns(1)
	if err := s.SettingsRepo().(*settingsRepo).ensureDefaults(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap settings: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SettingsRepo returns the settings repository.
func (s *Store) SettingsRepo() SettingsRepo {
	return &settingsRepo{store: s}
}

// ScenarioRepo returns the active scenario catalog repository.
func (s *Store) ScenarioRepo() ScenarioRepo {
	return &scenarioRepo{store: s}
}

// ConversationRepo returns the conversation history repository.
func (s *Store) ConversationRepo() ConversationRepo {
	return &conversationRepo{store: s}
}

// EventRepo returns the LLM request event repository.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{store: s}
}

// withTx runs fn inside a transaction. Any error rolls the whole unit back.
// fn must only use tx: the pool has one connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// buildDSN turns a file path into a modernc DSN carrying the pragmas the
// store relies on. Paths that already carry a query string are left alone
// apart from the missing pragmas.
func buildDSN(path string) string {
	pragmas := []string{
		"foreign_keys(1)",
		"busy_timeout(5000)",
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	var b strings.Builder
	b.WriteString(path)
	for _, p := range pragmas {
		name := p[:strings.IndexByte(p, '(')]
		if strings.Contains(path, "_pragma="+name) {
			continue
		}
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// DefaultDBPath resolves the database file path in priority order:
// 1. LINGOFLOW_DB environment variable
// 2. $XDG_DATA_HOME/lingoflow/lingoflow.db
// 3. ~/.local/share/lingoflow/lingoflow.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("LINGOFLOW_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "lingoflow", "lingoflow.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
