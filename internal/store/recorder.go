package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/palette"
)

// DefaultFlushEvery is how many events the recorder buffers before writing.
const DefaultFlushEvery = 256

// ErrRecorderClosed is returned when publishing to a closed recorder.
var ErrRecorderClosed = errors.New("recorder is closed")

// Recorder writes the events of one take. It implements engine.Sink.
type Recorder struct {
	mu         sync.Mutex
	store      *Store
	take       Take
	buf        []NoteEvent
	seq        int
	flushEvery int
	closed     bool
	log        *zap.Logger
	now        func() time.Time
}

// NewRecorder starts a new take in mode.
func (s *Store) NewRecorder(mode palette.Mode, log *zap.Logger) (*Recorder, error) {
	return s.newRecorder(mode, log, time.Now)
}

func (s *Store) newRecorder(mode palette.Mode, log *zap.Logger, now func() time.Time) (*Recorder, error) {
	if log == nil {
		log = zap.NewNop()
	}

	r := &Recorder{
		store: s,
		take: Take{
			ID:        uuid.NewString(),
			Mode:      mode.String(),
			StartedAt: now(),
		},
		flushEvery: DefaultFlushEvery,
		log:        log,
		now:        now,
	}

	if err := s.Takes().create(&r.take); err != nil {
		return nil, fmt.Errorf("start take: %w", err)
	}

	log.Info("recording take", zap.String("take", r.take.ID))
	return r, nil
}

// TakeID returns the ID of the take being recorded.
func (r *Recorder) TakeID() string {
	return r.take.ID
}

// Publish buffers ev, writing the buffer once it is full.
func (r *Recorder) Publish(ev engine.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRecorderClosed
	}

	r.seq++
	r.buf = append(r.buf, newNoteEvent(r.take.ID, r.seq, r.take.StartedAt, ev))
	if len(r.buf) >= r.flushEvery {
		return r.flushLocked()
	}
	return nil
}

// Flush writes buffered events.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked()
}

func (r *Recorder) flushLocked() error {
	if len(r.buf) == 0 {
		return nil
	}

	tx, err := r.store.db.Begin()
	if err != nil {
		return fmt.Errorf("flush take %s: %w", r.take.ID, err)
	}
	if err := insertEvents(tx, r.buf); err != nil {
		tx.Rollback()
		return fmt.Errorf("flush take %s: %w", r.take.ID, err)
	}
	if _, err := tx.Exec(`UPDATE takes SET events = ? WHERE id = ?`, r.seq, r.take.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("flush take %s: %w", r.take.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("flush take %s: %w", r.take.ID, err)
	}

	r.log.Debug("take flushed", zap.String("take", r.take.ID), zap.Int("events", len(r.buf)))
	r.buf = r.buf[:0]
	return nil
}

// Close writes remaining events and marks the take finished.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.flushLocked(); err != nil {
		return err
	}

	ended := r.now()
	if _, err := r.store.db.Exec(`UPDATE takes SET ended_at = ? WHERE id = ?`, ended, r.take.ID); err != nil {
		return fmt.Errorf("close take %s: %w", r.take.ID, err)
	}
	r.take.EndedAt = &ended
	r.take.Events = r.seq

	r.log.Info("take saved", zap.String("take", r.take.ID), zap.Int("events", r.seq))
	return nil
}
