package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/palette"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// fakeClock advances by step on every call.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	next := start
	return func() time.Time {
		now := next
		next = next.Add(step)
		return now
	}
}

func note(id, pitch string) palette.Note {
	midi, _ := palette.ParsePitch(pitch)
	return palette.Note{ID: palette.NoteID(id), Pitch: pitch, MIDI: midi, Freq: palette.Frequency(midi)}
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatal("database file should not exist before creating store")
	}

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file should exist after creating store")
	}
	if s.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", s.Path(), dbPath)
	}
}

func TestNewStore_RunsMigrations(t *testing.T) {
	s := newTestStore(t)

	for _, table := range []string{"takes", "note_events"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q should exist after migrations: %v", table, err)
		}
	}

	for _, idx := range []string{"idx_note_events_take_id", "idx_takes_started_at"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q should exist after migrations: %v", idx, err)
		}
	}

	var fk int
	if err := s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
		t.Errorf("foreign keys should be enabled (got %d, %v)", fk, err)
	}
}

func TestStore_Close(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("close should not return error: %v", err)
	}
	if _, err := s.DB().Exec("SELECT 1"); err == nil {
		t.Error("DB operations should fail after close")
	}
}

func TestRecorder_RecordsTake(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)

	rec, err := s.newRecorder(palette.Piano, zaptest.NewLogger(t), fakeClock(start, 10*time.Second))
	if err != nil {
		t.Fatalf("newRecorder() error = %v", err)
	}

	events := []engine.Event{
		{Kind: engine.NoteOn, Note: note("C5", "C5"), Mode: palette.Piano, At: start.Add(250 * time.Millisecond)},
		{Kind: engine.NoteOff, Note: note("C5", "C5"), Mode: palette.Piano, At: start.Add(900 * time.Millisecond)},
		{Kind: engine.NoteOn, Note: note("Bb", "Bb3"), Mode: palette.Trumpet, Sustained: true, At: start.Add(2 * time.Second)},
	}
	for _, ev := range events {
		if err := rec.Publish(ev); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	// Nothing is written before a flush.
	stored, err := s.Events().ListByTake(rec.TakeID())
	if err != nil {
		t.Fatalf("ListByTake() error = %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("got %d events before flush, want 0", len(stored))
	}

	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	take, err := s.Takes().GetByID(rec.TakeID())
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if take.Mode != "piano" || take.Events != 3 {
		t.Errorf("take = %+v, want piano with 3 events", take)
	}
	if take.EndedAt == nil || take.Duration() != 10*time.Second {
		t.Errorf("Duration() = %v, want 10s", take.Duration())
	}

	stored, err = s.Events().ListByTake(rec.TakeID())
	if err != nil {
		t.Fatalf("ListByTake() error = %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("got %d events, want 3", len(stored))
	}
	if stored[1].Kind != "note_off" || stored[1].Offset != 900*time.Millisecond {
		t.Errorf("second event = %+v", stored[1])
	}

	ev, err := stored[2].Event(start)
	if err != nil {
		t.Fatalf("Event() error = %v", err)
	}
	if ev.Kind != engine.NoteOn || ev.Note.ID != "Bb" || ev.Note.MIDI != 58 || ev.Mode != palette.Trumpet || !ev.Sustained {
		t.Errorf("rebuilt event = %+v", ev)
	}
	if !ev.At.Equal(start.Add(2 * time.Second)) {
		t.Errorf("rebuilt event at %v", ev.At)
	}

	if err := rec.Publish(events[0]); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("Publish() after Close = %v, want ErrRecorderClosed", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestRecorder_FlushesWhenFull(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.NewRecorder(palette.Synth, nil)
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	rec.flushEvery = 4

	for i := 0; i < 6; i++ {
		kind := engine.NoteOn
		if i%2 == 1 {
			kind = engine.NoteOff
		}
		if err := rec.Publish(engine.Event{Kind: kind, Note: note("E5", "E5"), Mode: palette.Synth, At: time.Now()}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	stored, _ := s.Events().ListByTake(rec.TakeID())
	if len(stored) != 4 {
		t.Errorf("got %d events after auto flush, want 4", len(stored))
	}

	if err := rec.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	stored, _ = s.Events().ListByTake(rec.TakeID())
	if len(stored) != 6 {
		t.Errorf("got %d events after flush, want 6", len(stored))
	}
	for i, e := range stored {
		if e.Seq != i+1 {
			t.Errorf("event %d has seq %d", i, e.Seq)
		}
	}
}

func TestTakeRepository(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	first, err := s.newRecorder(palette.Piano, nil, fakeClock(base, time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.newRecorder(palette.Trumpet, nil, fakeClock(base.Add(time.Hour), time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	first.Publish(engine.Event{Kind: engine.NoteOn, Note: note("G5", "G5"), Mode: palette.Piano, At: base})
	first.Close()

	takes, err := s.Takes().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(takes) != 2 {
		t.Fatalf("List() returned %d takes, want 2", len(takes))
	}
	if takes[0].ID != second.TakeID() {
		t.Error("newest take should be listed first")
	}
	if takes[0].EndedAt != nil {
		t.Error("running take should have no end time")
	}

	if err := s.Takes().Delete(first.TakeID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Takes().GetByID(first.TakeID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete = %v, want ErrNotFound", err)
	}
	events, _ := s.Events().ListByTake(first.TakeID())
	if len(events) != 0 {
		t.Error("events should be deleted with their take")
	}
	if err := s.Takes().Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) = %v, want ErrNotFound", err)
	}
}
