package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresRunStore persists runs in the playbook_runs table, scoped to one
// org.
type PostgresRunStore struct {
	db    *sql.DB
	orgID string
}

func NewPostgresRunStore(db *sql.DB, orgID string) *PostgresRunStore {
	return &PostgresRunStore{db: db, orgID: orgID}
}

func (s *PostgresRunStore) Create(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO playbook_runs
		(id, org_id, playbook_id, customer_id, started_at, status, triggering_signal_id, suppression_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''))`,
		run.ID, s.orgID, run.PlaybookID, run.CustomerID, run.StartedAt,
		run.Status, run.TriggeringSignalID, run.SuppressionReason)
	return err
}

func (s *PostgresRunStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playbook_runs WHERE id = $1 AND org_id = $2`, id, s.orgID)
	return err
}

func (s *PostgresRunStore) UpdateStatus(ctx context.Context, id uuid.UUID, status RunStatus, completedAt *time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playbook_runs SET status = $1, completed_at = $2 WHERE id = $3 AND org_id = $4`,
		status, completedAt, id, s.orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &NotFoundError{Kind: "run", ID: id.String()}
	}
	return nil
}

func (s *PostgresRunStore) CountActive(ctx context.Context, playbookID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playbook_runs
		WHERE playbook_id = $1 AND org_id = $2 AND status IN ('running', 'awaiting_approval')`,
		playbookID, s.orgID).Scan(&count)
	return count, err
}

func (s *PostgresRunStore) HasAwaitingApproval(ctx context.Context, playbookID, customerID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playbook_runs
		WHERE playbook_id = $1 AND customer_id = $2 AND org_id = $3 AND status = 'awaiting_approval'`,
		playbookID, customerID, s.orgID).Scan(&count)
	return count > 0, err
}

func (s *PostgresRunStore) CompleteRunning(ctx context.Context, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE playbook_runs SET status = 'completed', completed_at = $1
		WHERE org_id = $2 AND status = 'running'`, at, s.orgID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresRunStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playbook_runs WHERE org_id = $1`, s.orgID)
	return err
}
