// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"context"
	"database/sql"
	"strings"

	"lakeguard/domain"
)

// PrivilegeRepo is the SQLite-backed privilege store. Reads run on the
// read pool; grant/revoke traffic serializes on the write pool.
type PrivilegeRepo struct {
	writeDB *sql.DB
	readDB  *sql.DB
}

func NewPrivilegeRepo(writeDB, readDB *sql.DB) *PrivilegeRepo {
	return &PrivilegeRepo{writeDB: writeDB, readDB: readDB}
}

func (r *PrivilegeRepo) Grant(ctx context.Context, p domain.Privilege) error {
	_, err := r.writeDB.ExecContext(ctx, `
		INSERT OR IGNORE INTO privileges (principal, entity_kind, entity_namespace, entity_name, action)
		VALUES (?, ?, ?, ?, ?)`,
		p.Principal, string(p.Entity.Kind), p.Entity.Namespace, p.Entity.Name, string(p.Action))
	if err != nil {
		return domain.ErrStoreUnavailable("grant", err)
	}
	return nil
}

func (r *PrivilegeRepo) Revoke(ctx context.Context, p domain.Privilege) error {
	_, err := r.writeDB.ExecContext(ctx, `
		DELETE FROM privileges
		WHERE principal = ? AND entity_kind = ? AND entity_namespace = ? AND entity_name = ? AND action = ?`,
		p.Principal, string(p.Entity.Kind), p.Entity.Namespace, p.Entity.Name, string(p.Action))
	if err != nil {
		return domain.ErrStoreUnavailable("revoke", err)
	}
	return nil
}

func (r *PrivilegeRepo) GrantMatching(ctx context.Context, principal string, pattern domain.EntityPattern, action domain.Action) error {
	if pattern.Exact() {
		return r.Grant(ctx, domain.Privilege{Principal: principal, Entity: pattern.Entity(), Action: action})
	}

	where, args := patternWhere(pattern)
	query := `
		INSERT OR IGNORE INTO privileges (principal, entity_kind, entity_namespace, entity_name, action)
		SELECT DISTINCT ?, entity_kind, entity_namespace, entity_name, action
		FROM privileges
		WHERE ` + where + ` AND action = ?`
	queryArgs := append([]any{principal}, args...)
	queryArgs = append(queryArgs, string(action))

	if _, err := r.writeDB.ExecContext(ctx, query, queryArgs...); err != nil {
		return domain.ErrStoreUnavailable("wildcard grant", err)
	}
	return nil
}

func (r *PrivilegeRepo) RevokeMatching(ctx context.Context, principal string, pattern domain.EntityPattern, action domain.Action) ([]domain.Privilege, error) {
	where, args := patternWhere(pattern)
	predicate := `principal = ? AND ` + where + ` AND action = ?`
	predicateArgs := append([]any{principal}, args...)
	predicateArgs = append(predicateArgs, string(action))

	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("wildcard revoke", err)
	}
	defer tx.Rollback() //nolint:errcheck

	removed, err := queryPrivileges(ctx, tx,
		`SELECT principal, entity_kind, entity_namespace, entity_name, action FROM privileges WHERE `+predicate,
		predicateArgs...)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("wildcard revoke", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM privileges WHERE `+predicate, predicateArgs...); err != nil {
		return nil, domain.ErrStoreUnavailable("wildcard revoke", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.ErrStoreUnavailable("wildcard revoke", err)
	}
	return removed, nil
}

func (r *PrivilegeRepo) ListForPrincipal(ctx context.Context, principal string) ([]domain.Privilege, error) {
	privs, err := queryPrivileges(ctx, r.readDB, `
		SELECT principal, entity_kind, entity_namespace, entity_name, action
		FROM privileges WHERE principal = ?`, principal)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list for principal", err)
	}
	return privs, nil
}

func (r *PrivilegeRepo) ListForEntity(ctx context.Context, entity domain.EntityRef) ([]domain.Privilege, error) {
	privs, err := queryPrivileges(ctx, r.readDB, `
		SELECT principal, entity_kind, entity_namespace, entity_name, action
		FROM privileges WHERE entity_kind = ? AND entity_namespace = ? AND entity_name = ?`,
		string(entity.Kind), entity.Namespace, entity.Name)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("list for entity", err)
	}
	return privs, nil
}

func (r *PrivilegeRepo) DeleteForEntity(ctx context.Context, entity domain.EntityRef) ([]domain.Privilege, error) {
	predicate := `entity_kind = ? AND entity_namespace = ? AND entity_name = ?`
	args := []any{string(entity.Kind), entity.Namespace, entity.Name}

	// Deleting a namespace also drops privileges on everything inside it.
	if entity.Kind == domain.KindNamespace {
		predicate = `(` + predicate + ` OR entity_namespace = ?)`
		args = append(args, entity.Name)
	}

	tx, err := r.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("delete for entity", err)
	}
	defer tx.Rollback() //nolint:errcheck

	removed, err := queryPrivileges(ctx, tx,
		`SELECT principal, entity_kind, entity_namespace, entity_name, action FROM privileges WHERE `+predicate,
		args...)
	if err != nil {
		return nil, domain.ErrStoreUnavailable("delete for entity", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM privileges WHERE `+predicate, args...); err != nil {
		return nil, domain.ErrStoreUnavailable("delete for entity", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.ErrStoreUnavailable("delete for entity", err)
	}
	return removed, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryPrivileges(ctx context.Context, q querier, query string, args ...any) ([]domain.Privilege, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var privs []domain.Privilege
	for rows.Next() {
		var principal, kind, namespace, name, action string
		if err := rows.Scan(&principal, &kind, &namespace, &name, &action); err != nil {
			return nil, err
		}
		privs = append(privs, domain.Privilege{
			Principal: principal,
			Entity:    domain.EntityRef{Kind: domain.EntityKind(kind), Namespace: namespace, Name: name},
			Action:    domain.Action(action),
		})
	}
	return privs, rows.Err()
}

// patternWhere translates an EntityPattern into a SQL predicate over the
// privileges table. A namespace-scoped wildcard also selects the namespace
// entity's own row, mirroring EntityPattern.Matches.
func patternWhere(p domain.EntityPattern) (string, []any) {
	var conds []string
	var args []any

	if p.Kind != domain.Wildcard {
		conds = append(conds, `entity_kind = ?`)
		args = append(args, p.Kind)
	}
	if p.Namespace != domain.Wildcard {
		conds = append(conds, `entity_namespace = ?`)
		args = append(args, p.Namespace)
	}
	if p.Name != domain.Wildcard {
		conds = append(conds, `entity_name = ?`)
		args = append(args, p.Name)
	}
	if len(conds) == 0 {
		return `1 = 1`, nil
	}

	where := `(` + strings.Join(conds, ` AND `) + `)`

	if p.Namespace != domain.Wildcard && p.Namespace != "" && p.Name == domain.Wildcard &&
		(p.Kind == domain.Wildcard || p.Kind == string(domain.KindNamespace)) {
		where = `(` + where + ` OR (entity_kind = 'namespace' AND entity_namespace = '' AND entity_name = ?))`
		args = append(args, p.Namespace)
	}

	return where, args
}
