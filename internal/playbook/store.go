package playbook

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/ignite/playbook-engine/internal/signal"
)

// Store handles CRUD for the playbooks table. All queries are scoped to a
// single org; cross-tenant reads are not possible through this store.
type Store struct {
	db    *sql.DB
	orgID string
}

func NewStore(db *sql.DB, orgID string) *Store {
	return &Store{db: db, orgID: orgID}
}

const playbookColumns = `id, org_id, name, COALESCE(category,''), trigger_config, execution_mode,
	cooldown_hours, max_concurrent_runs, priority, actions, enabled, created_at, updated_at`

func scanPlaybook(row interface {
	Scan(dest ...interface{}) error
}) (*Playbook, error) {
	var p Playbook
	var triggerJSON, actionsJSON []byte
	err := row.Scan(&p.ID, &p.OrgID, &p.Name, &p.Category, &triggerJSON, &p.ExecutionMode,
		&p.CooldownHours, &p.MaxConcurrentRuns, &p.Priority, &actionsJSON, &p.Enabled,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(triggerJSON, &p.Trigger); err != nil {
		return nil, err
	}
	if len(actionsJSON) > 0 {
		if err := json.Unmarshal(actionsJSON, &p.Actions); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Get returns a playbook by id, or nil if it does not exist in this org.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Playbook, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE id = $1 AND org_id = $2`,
		id, s.orgID)
	p, err := scanPlaybook(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// List returns all playbooks for the org, highest priority first.
func (s *Store) List(ctx context.Context) ([]Playbook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks
		WHERE org_id = $1 ORDER BY priority DESC, created_at`, s.orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// ListEnabledBySignalType returns enabled playbooks whose trigger matches
// the given signal type. This is the orchestrator's selection gate.
func (s *Store) ListEnabledBySignalType(ctx context.Context, st signal.Type) ([]Playbook, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks
		WHERE org_id = $1 AND enabled = true AND trigger_config->>'signalType' = $2
		ORDER BY priority DESC, id`, s.orgID, string(st))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]Playbook, error) {
	var playbooks []Playbook
	for rows.Next() {
		p, err := scanPlaybook(rows)
		if err != nil {
			log.Printf("[playbook] scan error, skipping row: %v", err)
			continue
		}
		playbooks = append(playbooks, *p)
	}
	return playbooks, rows.Err()
}

// Create inserts a new playbook.
func (s *Store) Create(ctx context.Context, p *Playbook) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.OrgID = s.orgID
	triggerJSON, err := json.Marshal(p.Trigger)
	if err != nil {
		return err
	}
	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return err
	}
	return s.db.QueryRowContext(ctx,
		`INSERT INTO playbooks
		(id, org_id, name, category, trigger_config, execution_mode, cooldown_hours,
		 max_concurrent_runs, priority, actions, enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		p.ID, p.OrgID, p.Name, p.Category, triggerJSON, p.ExecutionMode,
		p.CooldownHours, p.MaxConcurrentRuns, p.Priority, actionsJSON, p.Enabled,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// Update modifies an existing playbook.
func (s *Store) Update(ctx context.Context, p *Playbook) error {
	triggerJSON, err := json.Marshal(p.Trigger)
	if err != nil {
		return err
	}
	actionsJSON, err := json.Marshal(p.Actions)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE playbooks SET name=$1, category=$2, trigger_config=$3, execution_mode=$4,
		cooldown_hours=$5, max_concurrent_runs=$6, priority=$7, actions=$8, enabled=$9,
		updated_at=NOW()
		WHERE id = $10 AND org_id = $11`,
		p.Name, p.Category, triggerJSON, p.ExecutionMode, p.CooldownHours,
		p.MaxConcurrentRuns, p.Priority, actionsJSON, p.Enabled, p.ID, s.orgID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a playbook by id.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM playbooks WHERE id = $1 AND org_id = $2`, id, s.orgID)
	return err
}
