package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per game, keyed by container and session id
type SQLiteStore struct {
	corruptLog
	db        *sql.DB
	container string
	writeMu   sync.Mutex // serializes writers to avoid SQLITE_BUSY
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath, container string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store requires a database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{corruptLog: newCorruptLog(), db: db, container: container}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS games (
		container TEXT NOT NULL,
		session_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (container, session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_games_sweep ON games(container, phase, updated_at);
	`
	_, err := s.db.Exec(query)
	return err
}

// Create inserts a new row; an existing key is reported as a duplicate
func (s *SQLiteStore) Create(ctx context.Context, game *engine.Game) error {
	data, err := Encode(game)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO games (container, session_id, phase, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (container, session_id) DO NOTHING
	`, s.container, game.SessionID, game.Phase.String(), data, game.CreatedAt.UnixNano(), game.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	if n == 0 {
		return duplicate(game.SessionID)
	}
	return nil
}

// Get loads a single game
func (s *SQLiteStore) Get(ctx context.Context, id string) (*engine.Game, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM games WHERE container = ? AND session_id = ?`,
		s.container, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return Decode(data)
}

// WithMut reads, mutates and writes a row inside one transaction
func (s *SQLiteStore) WithMut(ctx context.Context, id string, fn func(*engine.Game) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM games WHERE container = ? AND session_id = ?`,
		s.container, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(id)
	}
	if err != nil {
		return fmt.Errorf("select game: %w", err)
	}

	g, updated, err := mutate(data, fn)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE games SET phase = ?, data = ?, updated_at = ?
		WHERE container = ? AND session_id = ?
	`, g.Phase.String(), updated, g.UpdatedAt.UnixNano(), s.container, id); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// List returns every game in the container
func (s *SQLiteStore) List(ctx context.Context) ([]*engine.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, data FROM games WHERE container = ? ORDER BY created_at`, s.container)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var result []*engine.Game
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		g, err := Decode(data)
		if err != nil {
			s.skip(id, err)
			continue
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// Scan calls fn with every row in the container
func (s *SQLiteStore) Scan(ctx context.Context, fn func(id string, data []byte) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, data FROM games WHERE container = ? ORDER BY created_at`, s.container)
	if err != nil {
		return fmt.Errorf("scan games: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return fmt.Errorf("scan game: %w", err)
		}
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Sweep deletes finished rows not updated since cutoff
func (s *SQLiteStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM games
		WHERE container = ? AND phase = ? AND updated_at < ?
	`, s.container, engine.Finished{}.String(), cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sweep games: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep games: %w", err)
	}
	return int(n), nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
