package pgxstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

// Store resolves paper metadata from the corpus Postgres papers table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a resolver backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

const metadataQuery = `
	SELECT p.id, p.title, p.year, p.venue, p.doi, p.pmid, p.fields_of_study
	FROM papers p
	WHERE p.id = ANY($1);
`

// Resolve queries one batch of paper ids. Ids without a row are unresolved.
func (s *Store) Resolve(ctx context.Context, ids []string) (map[string]papers.Record, error) {
	rows, err := s.pool.Query(ctx, metadataQuery, ids)
	if err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}
	defer rows.Close()

	records := make(map[string]papers.Record, len(ids))
	for rows.Next() {
		var id, title string
		var year *int
		var venue, doi *string
		var pmid *int64
		var fieldsOfStudy []string
		if err := rows.Scan(&id, &title, &year, &venue, &doi, &pmid, &fieldsOfStudy); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		records[id] = papers.Record{
			Title:         title,
			Authors:       []papers.Author{},
			Year:          year,
			Venue:         venue,
			DOI:           doi,
			PMID:          pmid,
			FieldsOfStudy: fieldsOfStudy,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata query failed: %w", err)
	}

	return records, nil
}
