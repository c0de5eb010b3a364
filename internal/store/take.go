package store

import (
	"database/sql"
	"errors"
	"time"
)

// Take is one recording session.
type Take struct {
	ID        string
	Mode      string
	StartedAt time.Time
	EndedAt   *time.Time
	Events    int
}

// Duration returns how long the take lasted, or zero while it is running.
func (t *Take) Duration() time.Duration {
	if t.EndedAt == nil {
		return 0
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// TakeRepository reads and deletes takes.
type TakeRepository struct {
	db *sql.DB
}

// Takes returns the take repository for this store.
func (s *Store) Takes() *TakeRepository {
	return &TakeRepository{db: s.db}
}

func (r *TakeRepository) create(t *Take) error {
	_, err := r.db.Exec(
		`INSERT INTO takes (id, mode, started_at, events) VALUES (?, ?, ?, 0)`,
		t.ID, t.Mode, t.StartedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTake(row rowScanner) (*Take, error) {
	t := &Take{}
	var ended sql.NullTime
	if err := row.Scan(&t.ID, &t.Mode, &t.StartedAt, &ended, &t.Events); err != nil {
		return nil, err
	}
	if ended.Valid {
		e := ended.Time
		t.EndedAt = &e
	}
	return t, nil
}

// GetByID retrieves a take by its ID.
func (r *TakeRepository) GetByID(id string) (*Take, error) {
	t, err := scanTake(r.db.QueryRow(
		`SELECT id, mode, started_at, ended_at, events FROM takes WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// List returns every take, newest first.
func (r *TakeRepository) List() ([]*Take, error) {
	rows, err := r.db.Query(
		`SELECT id, mode, started_at, ended_at, events FROM takes ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var takes []*Take
	for rows.Next() {
		t, err := scanTake(rows)
		if err != nil {
			return nil, err
		}
		takes = append(takes, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return takes, nil
}

// Delete removes a take and its events.
func (r *TakeRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM takes WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
