package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher over the generated search_vector columns.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true: without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search unions minutes and comment hits ranked by ts_rank, with
// ts_headline snippets.
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

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultMinutes {
		where := "m.search_vector @@ " + tsQuery
		if q.Status != "" {
			args = append(args, q.Status)
			where += fmt.Sprintf(" AND m.status = $%d", len(args))
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'minutes'::text AS type, m.id, m.id AS minutes_id, m.meeting_id, mt.title,
				ts_headline('english', m.content_plain_text, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				m.status,
				ts_rank(m.search_vector, %s) AS rank
			FROM minutes m
			JOIN meetings mt ON mt.id = m.meeting_id
			WHERE %s`, tsQuery, tsQuery, where))
	}
	if q.FilterType == "" || q.FilterType == ResultComment {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.minutes_id, m.meeting_id,
				coalesce(c.section_reference, c.created_by_name) AS title,
				ts_headline('english', c.comment, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status,
				ts_rank(c.search_vector, %s) AS rank
			FROM minutes_comments c
			JOIN minutes m ON m.id = c.minutes_id
			WHERE c.search_vector @@ %s`, tsQuery, tsQuery, tsQuery))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	union := strings.Join(subQueries, " UNION ALL ")
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub", union)
	dataSQL := fmt.Sprintf(`SELECT type, id, minutes_id, meeting_id, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)

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
		if err := rows.Scan(&typ, &r.ID, &r.MinutesID, &r.MeetingID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every searchable row for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MinutesRecord, []CommentRecord, error) {
	minutesRows, err := p.db.QueryContext(ctx, `
		SELECT m.id, m.meeting_id, mt.title, m.content_plain_text, m.status
		FROM minutes m
		JOIN meetings mt ON mt.id = m.meeting_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load minutes: %w", err)
	}
	defer minutesRows.Close()

	minutes := make([]MinutesRecord, 0)
	for minutesRows.Next() {
		var r MinutesRecord
		if err := minutesRows.Scan(&r.ID, &r.MeetingID, &r.Title, &r.Content, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan minutes: %w", err)
		}
		minutes = append(minutes, r)
	}
	if err := minutesRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate minutes: %w", err)
	}

	commentRows, err := p.db.QueryContext(ctx, `
		SELECT id, minutes_id, comment, created_by_name, coalesce(section_reference, ''), resolved
		FROM minutes_comments
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load comments: %w", err)
	}
	defer commentRows.Close()

	comments := make([]CommentRecord, 0)
	for commentRows.Next() {
		var r CommentRecord
		if err := commentRows.Scan(&r.ID, &r.MinutesID, &r.Body, &r.Author, &r.Section, &r.Resolved); err != nil {
			return nil, nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, r)
	}
	if err := commentRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate comments: %w", err)
	}
	return minutes, comments, nil
}
