package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// CreateStageRun opens a stage execution record within a run.
func (s *SQLiteStore) CreateStageRun(runID, stage string) (*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StageRun{
		ID:        generateID(),
		RunID:     runID,
		Stage:     stage,
		Status:    StageStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	s.logger.Debug("creating stage run",
		slog.String("run", runID), slog.String("stage", stage))

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		sr.ID, sr.RunID, sr.Stage, sr.Status, sr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage run for %s: %w", stage, err)
	}
	return sr, nil
}

// CompleteStageRun marks a stage execution as finished.
func (s *SQLiteStore) CompleteStageRun(id string, status StageStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), nullable(errMsg), id)
	if err != nil {
		return fmt.Errorf("failed to complete stage run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}
	return nil
}

// ListStageRuns retrieves the stage records of a run in start order.
func (s *SQLiteStore) ListStageRuns(runID string) ([]*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, stage, status, started_at, completed_at, error
		 FROM stage_runs WHERE run_id = ? ORDER BY started_at, id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage runs: %w", err)
	}
	defer rows.Close()

	var out []*StageRun
	for rows.Next() {
		sr := &StageRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Stage, &sr.Status,
			&sr.StartedAt, &completedAt, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}
		if completedAt.Valid {
			t := completedAt.Time
			sr.CompletedAt = &t
		}
		sr.Error = errMsg.String
		out = append(out, sr)
	}
	return out, rows.Err()
}
