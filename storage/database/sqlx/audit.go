package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/audit"
)

const insertAuditEntry = `INSERT INTO "audit_entries" ("id", "actor_id", "action", "entity_type", "entity_id", "metadata", "created_at")
	VALUES (:id, :actor_id, :action, :entity_type, :entity_id, :metadata, :created_at)`

type auditRow struct {
	ID         string         `db:"id"`
	ActorID    sql.NullString `db:"actor_id"`
	Action     string         `db:"action"`
	EntityType string         `db:"entity_type"`
	EntityID   string         `db:"entity_id"`
	Metadata   types.JSONText `db:"metadata"`
	CreatedAt  time.Time      `db:"created_at"`
}

type auditRepository struct {
	exec core.DBExecutor
}

var _ audit.Repository = (*auditRepository)(nil) // interface compliance check

func NewAuditRepository(exec core.DBExecutor) audit.Repository {
	return &auditRepository{exec: exec}
}

func (repo auditRepository) CreateEntry(ctx context.Context, entry audit.Entry, exec ...core.DBExecutor) (audit.Entry, error) {
	entry.ID = uuid.New().String()
	meta := types.JSONText("{}")
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return audit.Entry{}, errors.Wrap(err, "encoding audit metadata")
		}
		meta = raw
	}

	row := auditRow{
		ID:         entry.ID,
		ActorID:    sql.NullString{String: entry.ActorID, Valid: entry.ActorID != ""},
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Metadata:   meta,
		CreatedAt:  entry.CreatedAt.UTC(),
	}
	query, args, err := named(insertAuditEntry, row)
	if err != nil {
		return audit.Entry{}, err
	}
	if _, err = core.GetExec(repo.exec, exec).ExecContext(ctx, query, args...); err != nil {
		return audit.Entry{}, errors.Wrap(err, "inserting audit entry")
	}
	return entry, nil
}

func (repo auditRepository) QueryEntries(ctx context.Context, filter audit.QueryFilter, page core.PageRequest, exec ...core.DBExecutor) ([]audit.Entry, int, error) {
	exe := core.GetExec(repo.exec, exec)

	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		conds = append(conds, cond)
		args = append(args, arg)
	}
	if filter.ActorID != "" {
		add(`"actor_id"::text = ?`, filter.ActorID)
	}
	if filter.Action != "" {
		add(`"action" = ?`, filter.Action)
	}
	if filter.EntityType != "" {
		add(`"entity_type" = ?`, filter.EntityType)
	}
	if filter.EntityID != "" {
		add(`"entity_id" = ?`, filter.EntityID)
	}
	if !filter.From.IsZero() {
		add(`"created_at" >= ?`, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		add(`"created_at" <= ?`, filter.To.UTC())
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := scalar(ctx, exe, &total, `SELECT COUNT(*) FROM "audit_entries"`+where, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting audit entries")
	}

	var rows []auditRow
	query := `SELECT "id", "actor_id", "action", "entity_type", "entity_id", "metadata", "created_at" FROM "audit_entries"` +
		where + ` ORDER BY "created_at" DESC, "id" DESC LIMIT ? OFFSET ?`
	if err := selectAll(ctx, exe, &rows, query, append(args, page.Limit(), page.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "querying audit entries")
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		entry := audit.Entry{
			ID:         row.ID,
			ActorID:    row.ActorID.String,
			Action:     row.Action,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Metadata:   make(map[string]interface{}),
			CreatedAt:  row.CreatedAt.UTC(),
		}
		if len(row.Metadata) > 0 {
			if err := row.Metadata.Unmarshal(&entry.Metadata); err != nil {
				return nil, 0, errors.Wrap(err, "decoding audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}
