package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"notifilter/internal/events"
)

// Repository loads the persisted rule set.
type Repository interface {
	LoadRules(ctx context.Context) ([]FilterRule, error)
}

// Store is a Repository that also accepts writes from the admin API.
type Store interface {
	Repository
	SaveRule(ctx context.Context, rule FilterRule) error
	DeleteRule(ctx context.Context, id, teamID string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS filter_rules (
			id         TEXT NOT NULL,
			team_id    TEXT NOT NULL DEFAULT 'default',
			name       TEXT NOT NULL,
			condition  JSONB NOT NULL DEFAULT '{}',
			action     TEXT NOT NULL,
			priority   INTEGER NOT NULL DEFAULT 0,
			channel_id TEXT NOT NULL DEFAULT '',
			active     BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (team_id, id)
		)
	`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create filter_rules table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LoadRules(ctx context.Context) ([]FilterRule, error) {
	query := `
		SELECT id, team_id, name, condition, action, priority, channel_id, active, created_at, updated_at
		FROM filter_rules
		ORDER BY priority DESC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var (
		rules   []FilterRule
		invalid []InvalidRule
		index   int
	)
	for ; rows.Next(); index++ {
		var (
			rule      FilterRule
			condition []byte
			action    string
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.TeamID,
			&rule.Name,
			&condition,
			&action,
			&rule.Priority,
			&rule.ChannelID,
			&rule.Active,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		if err := json.Unmarshal(condition, &rule.Condition); err != nil {
			invalid = append(invalid, InvalidRule{Index: index, ID: rule.ID, Err: fmt.Errorf("failed to decode condition: %w", err)})
			continue
		}
		rule.Action = events.FilterAction(action)
		if rule.TeamID == DefaultTeam {
			rule.TeamID = ""
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return rules, invalidRules("filter_rules", invalid)
}

func (r *PostgresRepository) SaveRule(ctx context.Context, rule FilterRule) error {
	condition, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode condition: %w", err)
	}

	query := `
		INSERT INTO filter_rules (id, team_id, name, condition, action, priority, channel_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (team_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			condition = EXCLUDED.condition,
			action = EXCLUDED.action,
			priority = EXCLUDED.priority,
			channel_id = EXCLUDED.channel_id,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Bucket(), rule.Name, condition, string(rule.Action),
		rule.Priority, rule.ChannelID, rule.Active, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteRule(ctx context.Context, id, teamID string) error {
	query := `DELETE FROM filter_rules WHERE team_id = $1 AND id = $2`
	if _, err := r.db.ExecContext(ctx, query, ResolveTeam(teamID), id); err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}
