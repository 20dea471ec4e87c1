package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wricardo/mcp-training/chopsticks/game/engine"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session already exists")
	ErrUnknownDriver    = errors.New("unknown store driver")
)

// DefaultContainer names the top-level record every backend keeps its games under
const DefaultContainer = "chopsticks_game_service"

// Store is a keyed collection of games with serialized per-session mutation
type Store interface {
	// Create inserts a new game keyed by its session id
	Create(ctx context.Context, game *engine.Game) error

	// Get returns a copy of the stored game
	Get(ctx context.Context, id string) (*engine.Game, error)

	// WithMut applies fn to a copy of the stored game and persists the result
	// only when fn returns nil. Calls for the same id never interleave.
	WithMut(ctx context.Context, id string, fn func(*engine.Game) error) error

	// List returns copies of every stored game. Records that fail to decode
	// are logged and skipped; Audit reports them.
	List(ctx context.Context) ([]*engine.Game, error)

	// Sweep deletes finished games last updated before cutoff. Records that
	// fail to decode are left in place.
	Sweep(ctx context.Context, cutoff time.Time) (int, error)

	Close() error
}

// Options selects and configures a backend
type Options struct {
	Driver    string
	Path      string
	Container string

	// Logger receives warnings about skipped records; nil discards them
	Logger *zerolog.Logger
}

// Open creates the store named by opts.Driver: memory, file, sqlite or bolt
func Open(opts Options) (Store, error) {
	if opts.Container == "" {
		opts.Container = DefaultContainer
	}

	var (
		store interface {
			Store
			SetLogger(zerolog.Logger)
		}
		err error
	)
	switch opts.Driver {
	case "", "memory":
		store = NewMemoryStore()
	case "file":
		store, err = NewFileStore(opts.Path, opts.Container)
	case "sqlite":
		store, err = NewSQLiteStore(opts.Path, opts.Container)
	case "bolt":
		store, err = NewBoltStore(opts.Path, opts.Container)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if opts.Logger != nil {
		store.SetLogger(*opts.Logger)
	}
	return store, nil
}

// corruptLog reports records that List and Sweep pass over
type corruptLog struct {
	logger zerolog.Logger
}

func newCorruptLog() corruptLog {
	return corruptLog{logger: zerolog.Nop()}
}

// SetLogger routes skipped-record warnings to logger
func (c *corruptLog) SetLogger(logger zerolog.Logger) {
	c.logger = logger.With().Str("component", "store").Logger()
}

func (c *corruptLog) skip(id string, err error) {
	c.logger.Warn().Err(err).Str("session_id", id).Msg("skipping undecodable record")
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

func duplicate(id string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
}

func sweepable(g *engine.Game, cutoff time.Time) bool {
	return g.IsFinished() && g.UpdatedAt.Before(cutoff)
}

// Scanner exposes the raw encoded records of a store
type Scanner interface {
	Scan(ctx context.Context, fn func(id string, data []byte) error) error
}

// Issue describes a stored record that failed to decode
type Issue struct {
	SessionID string
	Err       error
}

// Audit decodes every record in s and reports the ones that fail validation.
// The returned error is non-nil only when the scan itself fails.
func Audit(ctx context.Context, s Scanner) (checked int, issues []Issue, err error) {
	err = s.Scan(ctx, func(id string, data []byte) error {
		checked++
		g, decodeErr := Decode(data)
		if decodeErr != nil {
			issues = append(issues, Issue{SessionID: id, Err: decodeErr})
			return nil
		}
		if g.SessionID != id {
			issues = append(issues, Issue{
				SessionID: id,
				Err:       fmt.Errorf("%w: stored under %q but holds %q", ErrCorruptRecord, id, g.SessionID),
			})
		}
		return nil
	})
	return checked, issues, err
}
