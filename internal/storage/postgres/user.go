package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopora/storefront/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

const userColumns = `id, name, email, password_hash, role, address, phone_number, created_at`

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user. Returns user.ErrEmailTaken on a duplicate
// email.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	address, err := json.Marshal(u.Address)
	if err != nil {
		return fmt.Errorf("marshaling address: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, address, phone_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role, address, u.PhoneNumber,
	).Scan(&u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// GetByID returns a user by ID, or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return u, nil
}

// GetByEmail returns a user by email (case-insensitive), or
// user.ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = $1", strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile applies the non-nil profile fields and returns the updated
// user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, upd user.ProfileUpdate) (*user.User, error) {
	set := []string{"updated_at = now()"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Name != nil {
		set = append(set, "name = "+arg(*upd.Name))
	}
	if upd.Email != nil {
		set = append(set, "email = "+arg(strings.ToLower(*upd.Email)))
	}
	if upd.Address != nil {
		address, err := json.Marshal(*upd.Address)
		if err != nil {
			return nil, fmt.Errorf("marshaling address: %w", err)
		}
		set = append(set, "address = "+arg(address))
	}
	if upd.PhoneNumber != nil {
		set = append(set, "phone_number = "+arg(*upd.PhoneNumber))
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = %s RETURNING %s",
		strings.Join(set, ", "), arg(id), userColumns)

	u, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, user.ErrEmailTaken
		}
		return nil, fmt.Errorf("updating profile of user %q: %w", id, err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*user.User, error) {
	var (
		u       user.User
		address []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role,
		&address, &u.PhoneNumber, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if address != nil {
		if err := json.Unmarshal(address, &u.Address); err != nil {
			return nil, fmt.Errorf("unmarshaling address: %w", err)
		}
	}
	return &u, nil
}
