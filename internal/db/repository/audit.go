package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"lakeguard/domain"
)

// AuditRepo records privilege mutations in the audit_log table.
type AuditRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewAuditRepo(writeDB, readDB *sql.DB) *AuditRepo {
	return &AuditRepo{writeDB: writeDB, readDB: readDB}
}

func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT INTO audit_log (id, principal_name, entity_key, action, verb, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Principal, e.EntityKey, e.Action, e.Verb, e.CreatedAt)
	if err != nil {
		return domain.ErrStoreUnavailable("audit insert", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, principal string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.readDB.QueryContext(ctx, `
		SELECT id, principal_name, entity_key, action, verb, created_at
		FROM audit_log WHERE principal_name = ?
		ORDER BY created_at DESC LIMIT ?`, principal, limit)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("audit list", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Principal, &e.EntityKey, &e.Action, &e.Verb, &e.CreatedAt); err != nil {
			return nil, domain.ErrStoreUnavailable("audit list", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStoreUnavailable("audit list", err)
	}
	return entries, nil
}
