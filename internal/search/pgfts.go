package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher over the archive tables.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down the archive is down too.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across archived motions and resolutions
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Motions sub-query
	if q.FilterType == "" || q.FilterType == ResultMotion {
		motionVec := "to_tsvector('english', COALESCE(m.proposal, ''))"
		motionWhere := motionVec + " @@ " + tsQuery
		if q.FilterSessionID != "" {
			motionWhere += fmt.Sprintf(" AND m.session_id = $%d", argN)
			args = append(args, q.FilterSessionID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'motion'::text AS type, m.id, m.type AS title,
				ts_headline('english', coalesce(m.proposal, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				m.session_id,
				''::text AS status,
				ts_rank(%s, %s) AS rank
			FROM archived_motions m
			WHERE %s`, tsQuery, motionVec, tsQuery, motionWhere))
	}

	// Resolutions sub-query
	if q.FilterType == "" || q.FilterType == ResultResolution {
		resVec := "to_tsvector('english', r.name || ' ' || COALESCE(r.text, ''))"
		resWhere := resVec + " @@ " + tsQuery
		if q.FilterSessionID != "" {
			resWhere += fmt.Sprintf(" AND r.session_id = $%d", argN)
			args = append(args, q.FilterSessionID)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'resolution'::text AS type, r.id, r.name AS title,
				ts_headline('english', coalesce(r.text, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.session_id,
				r.status,
				ts_rank(%s, %s) AS rank
			FROM archived_resolutions r
			WHERE %s`, tsQuery, resVec, tsQuery, resWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) AS combined",
		strings.Join(subQueries, " UNION ALL "))
	dataSQL := fmt.Sprintf(`
		SELECT type, id, title, snippet, session_id, status
		FROM (%s) AS combined
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.SessionID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MotionDoc, []ResolutionDoc, error) {
	motionRows, err := p.db.QueryContext(ctx, `
		SELECT id, COALESCE(proposal, ''), proposer, type, session_id
		FROM archived_motions
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load motions: %w", err)
	}
	defer motionRows.Close()

	motions := make([]MotionDoc, 0)
	for motionRows.Next() {
		var m MotionDoc
		if err := motionRows.Scan(&m.ID, &m.Proposal, &m.Proposer, &m.Type, &m.SessionID); err != nil {
			return nil, nil, fmt.Errorf("scan motion: %w", err)
		}
		motions = append(motions, m)
	}
	if err := motionRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate motions: %w", err)
	}

	resRows, err := p.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(text, ''), proposer, status, session_id
		FROM archived_resolutions
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load resolutions: %w", err)
	}
	defer resRows.Close()

	resolutions := make([]ResolutionDoc, 0)
	for resRows.Next() {
		var r ResolutionDoc
		if err := resRows.Scan(&r.ID, &r.Name, &r.Text, &r.Proposer, &r.Status, &r.SessionID); err != nil {
			return nil, nil, fmt.Errorf("scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}
	if err := resRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	return motions, resolutions, nil
}
