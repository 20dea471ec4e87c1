package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/chopsticks/game/engine"
)

// FileStore keeps a whole container as a single JSON document on disk. Every
// mutation rewrites the document through a temp file and rename, so the file
// always holds either the old or the new collection.
type FileStore struct {
	corruptLog
	path      string
	container string
	games     map[string]json.RawMessage
	mu        sync.Mutex
}

// containerDocument is the on-disk layout of a FileStore
type containerDocument struct {
	Container string                     `json:"container"`
	SavedAt   time.Time                  `json:"saved_at"`
	Games     map[string]json.RawMessage `json:"games"`
}

// NewFileStore opens the container document in dir, creating dir if needed
func NewFileStore(dir, container string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("file store requires a directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{
		corruptLog: newCorruptLog(),
		path:       filepath.Join(dir, container+".json"),
		container:  container,
		games:      make(map[string]json.RawMessage),
	}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) load() error {
	data, err := os.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var doc containerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, fs.path, err)
	}
	if doc.Container != "" && doc.Container != fs.container {
		return fmt.Errorf("%w: %s holds container %q", ErrCorruptRecord, fs.path, doc.Container)
	}
	if doc.Games != nil {
		fs.games = doc.Games
	}
	return nil
}

// flush writes the current collection atomically
func (fs *FileStore) flush() error {
	doc := containerDocument{
		Container: fs.container,
		SavedAt:   time.Now().UTC(),
		Games:     fs.games,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fs.path), "."+fs.container+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close store file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// Create inserts a new game and flushes the container
func (fs *FileStore) Create(ctx context.Context, game *engine.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(game)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, exists := fs.games[game.SessionID]; exists {
		return duplicate(game.SessionID)
	}
	fs.games[game.SessionID] = data
	if err := fs.flush(); err != nil {
		delete(fs.games, game.SessionID)
		return err
	}
	return nil
}

// Get returns a decoded copy of a game
func (fs *FileStore) Get(ctx context.Context, id string) (*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	data, ok := fs.games[id]
	fs.mu.Unlock()

	if !ok {
		return nil, notFound(id)
	}
	return Decode(data)
}

// WithMut applies fn and flushes; the in-memory copy is restored if the flush fails
func (fs *FileStore) WithMut(ctx context.Context, id string, fn func(*engine.Game) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	previous, ok := fs.games[id]
	if !ok {
		return notFound(id)
	}
	_, updated, err := mutate(previous, fn)
	if err != nil {
		return err
	}

	fs.games[id] = updated
	if err := fs.flush(); err != nil {
		fs.games[id] = previous
		return err
	}
	return nil
}

// List returns all games in the container
func (fs *FileStore) List(ctx context.Context) ([]*engine.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	result := make([]*engine.Game, 0, len(fs.games))
	for id, data := range fs.games {
		g, err := Decode(data)
		if err != nil {
			fs.skip(id, err)
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

// Sweep removes finished games older than cutoff in one flush
func (fs *FileStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	removed := make(map[string]json.RawMessage)
	for id, data := range fs.games {
		g, err := Decode(data)
		if err != nil {
			fs.skip(id, err)
			continue
		}
		if sweepable(g, cutoff) {
			removed[id] = data
		}
	}
	if len(removed) == 0 {
		return 0, nil
	}

	for id := range removed {
		delete(fs.games, id)
	}
	if err := fs.flush(); err != nil {
		for id, data := range removed {
			fs.games[id] = data
		}
		return 0, err
	}
	return len(removed), nil
}

// Scan calls fn with every record in the container document
func (fs *FileStore) Scan(ctx context.Context, fn func(id string, data []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	for id, data := range fs.games {
		if err := fn(id, data); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the container document location
func (fs *FileStore) Path() string {
	return fs.path
}

// Close is a no-op; every mutation is already on disk
func (fs *FileStore) Close() error {
	return nil
}
