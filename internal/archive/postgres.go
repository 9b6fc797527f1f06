package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresArchive struct {
	db *sql.DB
}

func NewPostgresArchive(db *sql.DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) DB() *sql.DB {
	return a.db
}

func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// RecordSession writes a closed session and everything beneath it in one
// transaction. Calling it twice for the same session id is an error: the
// archive is append-only.
func (a *PostgresArchive) RecordSession(ctx context.Context, session SessionRecord, motions []MotionRecord, speeches []SpeechRecord, resolutions []ResolutionRecord) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO archived_sessions (id, name, chair, topic, closed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.ID, session.Name, session.Chair, session.Topic, session.ClosedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for _, m := range motions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archived_motions (id, session_id, proposal, proposer, seconder, type, caucus_seconds, speaker_seconds, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, m.ID, m.SessionID, m.Proposal, m.Proposer, m.Seconder, m.Type, m.CaucusSeconds, m.SpeakerSeconds, m.Position); err != nil {
			return fmt.Errorf("insert motion %s: %w", m.ID, err)
		}
	}

	for _, sp := range speeches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archived_speeches (id, session_id, caucus, who, stance, duration, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sp.ID, sp.SessionID, sp.Caucus, sp.Who, sp.Stance, sp.Duration, sp.Position); err != nil {
			return fmt.Errorf("insert speech %s: %w", sp.ID, err)
		}
	}

	for _, r := range resolutions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archived_resolutions (id, session_id, name, proposer, seconder, status, text)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, r.ID, r.SessionID, r.Name, r.Proposer, r.Seconder, r.Status, r.Text); err != nil {
			return fmt.Errorf("insert resolution %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive tx: %w", err)
	}
	return nil
}

func (a *PostgresArchive) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	err := a.db.QueryRowContext(ctx, `
		SELECT id, name, chair, COALESCE(topic, ''), closed_at
		FROM archived_sessions WHERE id=$1
	`, id).Scan(&rec.ID, &rec.Name, &rec.Chair, &rec.Topic, &rec.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, fmt.Errorf("session %s not archived", id)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("read session: %w", err)
	}
	return rec, nil
}

func (a *PostgresArchive) ListSessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, chair, COALESCE(topic, ''), closed_at
		FROM archived_sessions ORDER BY closed_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Chair, &rec.Topic, &rec.ClosedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *PostgresArchive) ListMotions(ctx context.Context, sessionID string) ([]MotionRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, COALESCE(proposal, ''), proposer, COALESCE(seconder, ''), type, caucus_seconds, speaker_seconds, position
		FROM archived_motions WHERE session_id=$1 ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list motions: %w", err)
	}
	defer rows.Close()

	var out []MotionRecord
	for rows.Next() {
		var rec MotionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Proposal, &rec.Proposer, &rec.Seconder, &rec.Type, &rec.CaucusSeconds, &rec.SpeakerSeconds, &rec.Position); err != nil {
			return nil, fmt.Errorf("scan motion: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *PostgresArchive) ListSpeeches(ctx context.Context, sessionID string) ([]SpeechRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, caucus, who, stance, duration, position
		FROM archived_speeches WHERE session_id=$1 ORDER BY caucus, position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list speeches: %w", err)
	}
	defer rows.Close()

	var out []SpeechRecord
	for rows.Next() {
		var rec SpeechRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Caucus, &rec.Who, &rec.Stance, &rec.Duration, &rec.Position); err != nil {
			return nil, fmt.Errorf("scan speech: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *PostgresArchive) ListResolutions(ctx context.Context, sessionID string) ([]ResolutionRecord, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, session_id, name, proposer, COALESCE(seconder, ''), status, COALESCE(text, '')
		FROM archived_resolutions WHERE session_id=$1 ORDER BY name
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close()

	var out []ResolutionRecord
	for rows.Next() {
		var rec ResolutionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Name, &rec.Proposer, &rec.Seconder, &rec.Status, &rec.Text); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SummaryCounts reports archived sessions, motions and resolutions.
func (a *PostgresArchive) SummaryCounts(ctx context.Context) (int, int, int, error) {
	var sessions, motions, resolutions int
	err := a.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM archived_sessions),
			(SELECT COUNT(*) FROM archived_motions),
			(SELECT COUNT(*) FROM archived_resolutions)
	`).Scan(&sessions, &motions, &resolutions)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("summary counts: %w", err)
	}
	return sessions, motions, resolutions, nil
}
