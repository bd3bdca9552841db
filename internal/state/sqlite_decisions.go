package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordDecision stores an operator checkpoint resolution. A checkpoint can
// be re-decided; the latest decision wins.
func (s *SQLiteStore) RecordDecision(d *Decision) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if d.RunID == "" || d.Checkpoint == "" {
		return fmt.Errorf("decision needs run id and checkpoint")
	}

	if d.ID == "" {
		d.ID = generateID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO decisions (id, run_id, checkpoint, choice, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, checkpoint) DO UPDATE SET
		   choice = excluded.choice, path = excluded.path, created_at = excluded.created_at`,
		d.ID, d.RunID, d.Checkpoint, d.Choice, d.Path, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record decision for %s: %w", d.Checkpoint, err)
	}
	return nil
}

// GetDecision retrieves the decision recorded for a checkpoint, or nil when
// the checkpoint has not been decided.
func (s *SQLiteStore) GetDecision(runID, checkpoint string) (*Decision, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	d := &Decision{}
	err := s.db.QueryRow(
		`SELECT id, run_id, checkpoint, choice, path, created_at
		 FROM decisions WHERE run_id = ? AND checkpoint = ?`, runID, checkpoint,
	).Scan(&d.ID, &d.RunID, &d.Checkpoint, &d.Choice, &d.Path, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision for %s: %w", checkpoint, err)
	}
	return d, nil
}
