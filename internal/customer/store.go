package customer

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Store resolves customer context from the customers table.
type Store struct {
	db    *sql.DB
	orgID string
}

func NewStore(db *sql.DB, orgID string) *Store {
	return &Store{db: db, orgID: orgID}
}

// Context loads the customer row and derives the as-of facts. Days inactive
// and days overdue are computed against asOf, not wall time, so evaluations
// under a simulated clock stay consistent.
func (s *Store) Context(ctx context.Context, customerID uuid.UUID, asOf time.Time) (*Context, error) {
	var c Context
	var sourcesJSON, segmentsJSON []byte
	var lastActivityAt, oldestDueAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, COALESCE(mrr, 0), COALESCE(connected_sources, '[]'),
			COALESCE(segment_ids, '[]'), last_activity_at, oldest_due_at
		FROM customers WHERE id = $1 AND org_id = $2`,
		customerID, s.orgID,
	).Scan(&c.CustomerID, &c.Email, &c.MRR, &sourcesJSON, &segmentsJSON,
		&lastActivityAt, &oldestDueAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(sourcesJSON, &c.ConnectedSources); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(segmentsJSON, &c.SegmentIDs); err != nil {
		return nil, err
	}

	if lastActivityAt.Valid {
		c.DaysInactive = daysBetween(lastActivityAt.Time, asOf)
	}
	if oldestDueAt.Valid {
		c.DaysOverdue = daysBetween(oldestDueAt.Time, asOf)
	}
	return &c, nil
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
