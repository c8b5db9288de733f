// Package persist coalesces setpoint and setting changes and commits them to
// durable storage after a quiet period, so a burst of edits costs one write.
package persist

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/radiant-controller/db"
)

const DefaultDebounce = 2 * time.Second

// Backend stores settings by key. Commit must be all-or-nothing.
type Backend interface {
	Load(key string) (float64, bool, error)
	Commit(values map[string]float64) error
}

// SQLBackend stores settings in the sqlite settings table.
type SQLBackend struct {
	DB *sql.DB
}

func (b SQLBackend) Load(key string) (float64, bool, error) {
	return db.LoadSetting(b.DB, key)
}

func (b SQLBackend) Commit(values map[string]float64) error {
	return db.SaveSettings(b.DB, values)
}

type Writer struct {
	backend  Backend
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]float64
	flushMu sync.Mutex
	notify  chan struct{}
}

func New(backend Backend, debounce time.Duration) *Writer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Writer{
		backend:  backend,
		debounce: debounce,
		pending:  make(map[string]float64),
		notify:   make(chan struct{}, 1),
	}
}

// Load reads a stored value. Storage errors are logged and reported as absent
// so callers fall back to their defaults.
func (w *Writer) Load(key string) (float64, bool) {
	v, ok, err := w.backend.Load(key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to load persisted setting")
		return 0, false
	}
	return v, ok
}

// Save queues a value for the next commit and never blocks. A later Save of
// the same key replaces the queued value.
func (w *Writer) Save(key string, value float64) {
	w.mu.Lock()
	w.pending[key] = value
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush commits everything queued. On failure the batch is re-queued, except
// for keys saved again in the meantime.
func (w *Writer) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]float64)
	w.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := w.backend.Commit(batch); err != nil {
		w.mu.Lock()
		for k, v := range batch {
			if _, newer := w.pending[k]; !newer {
				w.pending[k] = v
			}
		}
		w.mu.Unlock()
		return fmt.Errorf("commit %d settings: %w", len(batch), err)
	}

	log.Info().Int("settings", len(batch)).Msg("Persisted settings")
	return nil
}

// Run commits queued values once no new Save has arrived for the debounce
// window. Failed commits are retried one window later. A final flush is
// attempted when ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	var window <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if err := w.Flush(); err != nil {
				log.Error().Err(err).Msg("Final settings flush failed")
			}
			return
		case <-w.notify:
			window = time.After(w.debounce)
		case <-window:
			window = nil
			if err := w.Flush(); err != nil {
				log.Error().Err(err).Dur("retry_in", w.debounce).Msg("Settings commit failed, will retry")
				window = time.After(w.debounce)
			}
		}
	}
}
