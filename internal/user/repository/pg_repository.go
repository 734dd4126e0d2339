package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/AlibekovAA/panel-auth/internal/common/db"
	"github.com/AlibekovAA/panel-auth/internal/user/domain"
)

const pgUserColumns = `id, email, name, password_hash, role, org_unit, regions, active, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	regions := user.Regions
	if regions == nil {
		regions = []string{}
	}
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO users (id, email, name, password_hash, role, org_unit, regions, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(user.ID),
		strings.ToLower(user.Email),
		user.Name,
		user.PasswordHash,
		user.Role,
		user.OrgUnit,
		regions,
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration("create user", start)
		return ErrEmailAlreadyExists
	}
	return db.HandleExecError(err, "create user", start)
}

func (r *PgRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE email = $1`,
		strings.ToLower(email),
	)

	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&user.OrgUnit, &user.Regions, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by email", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *PgRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE id = $1`,
		string(id),
	)

	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&user.OrgUnit, &user.Regions, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by id", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}
