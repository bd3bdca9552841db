package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordArtifact inserts a manifest entry. Recording the same artifact name
// twice within a run replaces the previous entry; stages that re-run
// overwrite their outputs.
func (s *SQLiteStore) RecordArtifact(a *Artifact) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if a.RunID == "" || a.Name == "" || a.Path == "" {
		return fmt.Errorf("artifact needs run id, name and path")
	}

	if a.ID == "" {
		a.ID = generateID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO artifacts
		   (id, run_id, stage, name, kind, path, crs, cell_size, xmin, ymin, xmax, ymax, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, name) DO UPDATE SET
		   stage = excluded.stage, kind = excluded.kind, path = excluded.path,
		   crs = excluded.crs, cell_size = excluded.cell_size,
		   xmin = excluded.xmin, ymin = excluded.ymin,
		   xmax = excluded.xmax, ymax = excluded.ymax,
		   created_at = excluded.created_at`,
		a.ID, a.RunID, a.Stage, a.Name, a.Kind, a.Path, a.CRS, a.CellSize,
		a.Xmin, a.Ymin, a.Xmax, a.Ymax, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact %s: %w", a.Name, err)
	}
	return nil
}

// ListArtifacts retrieves a run's manifest ordered by creation.
func (s *SQLiteStore) ListArtifacts(runID string) ([]*Artifact, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, stage, name, kind, path, crs, cell_size, xmin, ymin, xmax, ymax, created_at
		 FROM artifacts WHERE run_id = ? ORDER BY created_at, name`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a := &Artifact{}
		if err := rows.Scan(&a.ID, &a.RunID, &a.Stage, &a.Name, &a.Kind, &a.Path,
			&a.CRS, &a.CellSize, &a.Xmin, &a.Ymin, &a.Xmax, &a.Ymax, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetArtifact retrieves one manifest entry by name.
func (s *SQLiteStore) GetArtifact(runID, name string) (*Artifact, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	a := &Artifact{}
	err := s.db.QueryRow(
		`SELECT id, run_id, stage, name, kind, path, crs, cell_size, xmin, ymin, xmax, ymax, created_at
		 FROM artifacts WHERE run_id = ? AND name = ?`, runID, name,
	).Scan(&a.ID, &a.RunID, &a.Stage, &a.Name, &a.Kind, &a.Path,
		&a.CRS, &a.CellSize, &a.Xmin, &a.Ymin, &a.Xmax, &a.Ymax, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("artifact not found: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact %s: %w", name, err)
	}
	return a, nil
}
