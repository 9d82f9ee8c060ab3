// Framesight - Real-Time Camera Frame Analysis Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/framesight

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/framesight/internal/models"
)

// ErrNotFound is returned when an update or lookup matches no row.
var ErrNotFound = errors.New("row not found")

// InsertMoment creates the moment row. Title, description, and clip path
// start null and are back-filled by independent collaborators.
func (s *Store) InsertMoment(ctx context.Context, m *models.Moment) (err error) {
	start := time.Now()
	defer func() { observe("insert", "moments", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO moments (id, media_id, start_time, end_time, peak_deviation, type, title, description, clip_path, thumbnail_path)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MediaID, m.StartTime, m.EndTime, m.PeakDeviation, string(m.Type),
		m.Title, m.Description, m.ClipPath, m.ThumbnailPath,
	)
	if err != nil {
		return fmt.Errorf("insert moment %s: %w", m.ID, err)
	}
	return nil
}

// UpdateMomentSummary back-fills title and description from summarization.
func (s *Store) UpdateMomentSummary(ctx context.Context, id uuid.UUID, title, description string) (err error) {
	start := time.Now()
	defer func() { observe("update", "moments", start, err) }()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE moments SET title = ?, description = ? WHERE id = ?`,
		title, description, id,
	)
	if err != nil {
		return fmt.Errorf("update moment summary %s: %w", id, err)
	}
	return requireRow(res, id.String())
}

// UpdateMomentClipPath back-fills the saved clip location reported by the
// recording subsystem.
func (s *Store) UpdateMomentClipPath(ctx context.Context, id uuid.UUID, clipPath string) (err error) {
	start := time.Now()
	defer func() { observe("update", "moments", start, err) }()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE moments SET clip_path = ? WHERE id = ?`,
		clipPath, id,
	)
	if err != nil {
		return fmt.Errorf("update moment clip path %s: %w", id, err)
	}
	return requireRow(res, id.String())
}

// GetMoment fetches one moment row.
func (s *Store) GetMoment(ctx context.Context, id uuid.UUID) (m *models.Moment, err error) {
	start := time.Now()
	defer func() { observe("select", "moments", start, err) }()

	m = &models.Moment{}
	var typ string
	err = s.conn.QueryRowContext(ctx,
		`SELECT id, media_id, start_time, end_time, peak_deviation, type, title, description, clip_path, thumbnail_path
		 FROM moments WHERE id = ?`, id,
	).Scan(&m.ID, &m.MediaID, &m.StartTime, &m.EndTime, &m.PeakDeviation, &typ,
		&m.Title, &m.Description, &m.ClipPath, &m.ThumbnailPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get moment %s: %w", id, err)
	}
	m.Type = models.MomentType(typ)
	return m, nil
}

// ListMoments returns the most recent moments for a source, newest first.
func (s *Store) ListMoments(ctx context.Context, mediaID string, limit int) (out []*models.Moment, err error) {
	start := time.Now()
	defer func() { observe("select", "moments", start, err) }()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, media_id, start_time, end_time, peak_deviation, type, title, description, clip_path, thumbnail_path
		 FROM moments WHERE media_id = ? ORDER BY start_time DESC LIMIT ?`,
		mediaID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list moments for %s: %w", mediaID, err)
	}
	defer rows.Close()

	for rows.Next() {
		m := &models.Moment{}
		var typ string
		if err := rows.Scan(&m.ID, &m.MediaID, &m.StartTime, &m.EndTime, &m.PeakDeviation, &typ,
			&m.Title, &m.Description, &m.ClipPath, &m.ThumbnailPath); err != nil {
			return nil, fmt.Errorf("scan moment: %w", err)
		}
		m.Type = models.MomentType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMediaUnit creates one captured-frame row.
func (s *Store) InsertMediaUnit(ctx context.Context, u *models.MediaUnit) (err error) {
	start := time.Now()
	defer func() { observe("insert", "media_units", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO media_units (id, media_id, at_time, description, embedding, path, type)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.MediaID, u.AtTime, u.Description, u.Embedding, u.Path, u.Type,
	)
	if err != nil {
		return fmt.Errorf("insert media unit %s: %w", u.ID, err)
	}
	return nil
}

// UpdateMediaUnitDescription back-fills the general caption.
func (s *Store) UpdateMediaUnitDescription(ctx context.Context, id uuid.UUID, description string) (err error) {
	start := time.Now()
	defer func() { observe("update", "media_units", start, err) }()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE media_units SET description = ? WHERE id = ?`,
		description, id,
	)
	if err != nil {
		return fmt.Errorf("update media unit description %s: %w", id, err)
	}
	return requireRow(res, id.String())
}

// UpdateMediaUnitEmbedding back-fills the embedding bytes.
func (s *Store) UpdateMediaUnitEmbedding(ctx context.Context, id uuid.UUID, embedding []byte) (err error) {
	start := time.Now()
	defer func() { observe("update", "media_units", start, err) }()

	res, err := s.conn.ExecContext(ctx,
		`UPDATE media_units SET embedding = ? WHERE id = ?`,
		embedding, id,
	)
	if err != nil {
		return fmt.Errorf("update media unit embedding %s: %w", id, err)
	}
	return requireRow(res, id.String())
}

// GetMediaUnit fetches one media unit row.
func (s *Store) GetMediaUnit(ctx context.Context, id uuid.UUID) (u *models.MediaUnit, err error) {
	start := time.Now()
	defer func() { observe("select", "media_units", start, err) }()

	u = &models.MediaUnit{}
	err = s.conn.QueryRowContext(ctx,
		`SELECT id, media_id, at_time, description, embedding, path, type
		 FROM media_units WHERE id = ?`, id,
	).Scan(&u.ID, &u.MediaID, &u.AtTime, &u.Description, &u.Embedding, &u.Path, &u.Type)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media unit %s: %w", id, err)
	}
	return u, nil
}

// InsertAgentResponse records one custom agent's caption for a media unit.
func (s *Store) InsertAgentResponse(ctx context.Context, r *models.AgentResponse) (err error) {
	start := time.Now()
	defer func() { observe("insert", "agent_responses", start, err) }()

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO agent_responses (id, media_unit_id, agent, response, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.MediaUnitID, r.Agent, r.Response, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert agent response %s: %w", r.ID, err)
	}
	return nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
