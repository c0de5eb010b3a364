package store

import (
	"database/sql"
	"time"

	"github.com/ayusman/airtune/internal/engine"
	"github.com/ayusman/airtune/internal/palette"
)

// NoteEvent is one stored engine event.
type NoteEvent struct {
	TakeID    string
	Seq       int
	Kind      string
	Note      string
	Pitch     string
	MIDI      int
	Mode      string
	Sustained bool
	// Offset is the time since the take started.
	Offset time.Duration
}

func newNoteEvent(takeID string, seq int, started time.Time, ev engine.Event) NoteEvent {
	offset := ev.At.Sub(started)
	if ev.At.IsZero() || offset < 0 {
		offset = 0
	}
	return NoteEvent{
		TakeID:    takeID,
		Seq:       seq,
		Kind:      ev.Kind.String(),
		Note:      string(ev.Note.ID),
		Pitch:     ev.Note.Pitch,
		MIDI:      ev.Note.MIDI,
		Mode:      ev.Mode.String(),
		Sustained: ev.Sustained,
		Offset:    offset,
	}
}

// Event rebuilds the engine event, timed relative to start.
func (e NoteEvent) Event(start time.Time) (engine.Event, error) {
	kind, err := engine.ParseKind(e.Kind)
	if err != nil {
		return engine.Event{}, err
	}
	mode, err := palette.ParseMode(e.Mode)
	if err != nil {
		return engine.Event{}, err
	}
	return engine.Event{
		Kind: kind,
		Note: palette.Note{
			ID:    palette.NoteID(e.Note),
			Pitch: e.Pitch,
			MIDI:  e.MIDI,
			Freq:  palette.Frequency(e.MIDI),
		},
		Mode:      mode,
		Sustained: e.Sustained,
		At:        start.Add(e.Offset),
	}, nil
}

// EventRepository reads stored note events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the note event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// ListByTake returns a take's events in emission order.
func (r *EventRepository) ListByTake(takeID string) ([]NoteEvent, error) {
	rows, err := r.db.Query(
		`SELECT take_id, seq, kind, note, pitch, midi, mode, sustained, offset_ms
		 FROM note_events WHERE take_id = ? ORDER BY seq`,
		takeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []NoteEvent
	for rows.Next() {
		var (
			e        NoteEvent
			offsetMs int64
		)
		if err := rows.Scan(&e.TakeID, &e.Seq, &e.Kind, &e.Note, &e.Pitch, &e.MIDI, &e.Mode, &e.Sustained, &offsetMs); err != nil {
			return nil, err
		}
		e.Offset = time.Duration(offsetMs) * time.Millisecond
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func insertEvents(tx *sql.Tx, events []NoteEvent) error {
	stmt, err := tx.Prepare(
		`INSERT INTO note_events (take_id, seq, kind, note, pitch, midi, mode, sustained, offset_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.TakeID, e.Seq, e.Kind, e.Note, e.Pitch, e.MIDI, e.Mode, e.Sustained, e.Offset.Milliseconds()); err != nil {
			return err
		}
	}
	return nil
}
