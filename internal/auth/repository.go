package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads role grants from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) RolePermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT permission
		FROM role_permissions
		WHERE role = $1
		ORDER BY permission
	`, role)
	if err != nil {
		return nil, fmt.Errorf("auth: role permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("auth: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
