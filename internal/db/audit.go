package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/balaji090804/placement-portal/internal/errors"
	"github.com/balaji090804/placement-portal/internal/placement"
)

// AppendAudit writes e to the audit log and assigns its per-entity sequence
// number. It must run in the same transaction as the change it records so
// the seq order matches commit order.
func AppendAudit(ctx context.Context, q Querier, e *placement.AuditEntry) error {
	if e.ID == "" {
		return errors.NewInternal(fmt.Errorf("audit entry for %s %s has no id", e.EntityKind, e.EntityID))
	}

	var seq int
	if err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM audit_log WHERE entity_kind = ? AND entity_id = ?
	`, string(e.EntityKind), e.EntityID).Scan(&seq); err != nil {
		return errors.NewInternal(err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_log (id, entity_kind, entity_id, seq, action, from_state, to_state, actor_id, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, string(e.EntityKind), e.EntityID, seq, e.Action,
		toNullString(e.FromState), toNullString(e.ToState), e.ActorID, e.At)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	e.Seq = seq
	return nil
}

// ListAudit returns the audit entries of one entity in seq order.
func ListAudit(ctx context.Context, q Querier, kind placement.EntityKind, entityID string) ([]placement.AuditEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, seq, action, from_state, to_state, actor_id, at
		FROM audit_log
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY seq ASC
	`, string(kind), entityID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := []placement.AuditEntry{}
	for rows.Next() {
		var (
			e        placement.AuditEntry
			kindRaw  string
			from, to sql.NullString
		)
		if err := rows.Scan(&e.ID, &kindRaw, &e.EntityID, &e.Seq, &e.Action, &from, &to, &e.ActorID, &e.At); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.EntityKind = placement.EntityKind(kindRaw)
		e.FromState = from.String
		e.ToState = to.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
