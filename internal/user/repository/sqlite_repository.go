package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AlibekovAA/panel-auth/internal/common/db"
	"github.com/AlibekovAA/panel-auth/internal/user/domain"
)

const sqliteUserColumns = `id, email, name, password_hash, role, org_unit, regions, active, created_at, updated_at`

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(conn *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: conn}
}

func (r *SQLiteRepository) Create(ctx context.Context, user domain.User) error {
	start := time.Now()
	regions := user.Regions
	if regions == nil {
		regions = []string{}
	}
	encoded, err := json.Marshal(regions)
	if err != nil {
		return fmt.Errorf("failed to encode regions: %w", err)
	}

	_, err = r.db.ExecContext(
		ctx,
		`INSERT INTO users (id, email, name, password_hash, role, org_unit, regions, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(user.ID),
		strings.ToLower(user.Email),
		user.Name,
		user.PasswordHash,
		user.Role,
		user.OrgUnit,
		string(encoded),
		user.Active,
		user.CreatedAt.UnixNano(),
		user.UpdatedAt.UnixNano(),
	)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration("create user", start)
		return ErrEmailAlreadyExists
	}
	return db.HandleExecError(err, "create user", start)
}

func (r *SQLiteRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE email = ?`, strings.ToLower(email))
	user, err := scanSQLiteUser(row)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by email", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id domain.ID) (domain.User, error) {
	start := time.Now()
	row := r.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, string(id))
	user, err := scanSQLiteUser(row)
	if err := db.HandleQueryError(err, ErrUserNotFound, "find user by id", start); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func scanSQLiteUser(row *sql.Row) (domain.User, error) {
	var (
		user      domain.User
		regions   string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role,
		&user.OrgUnit, &regions, &user.Active, &createdAt, &updatedAt); err != nil {
		return domain.User{}, err
	}
	if err := json.Unmarshal([]byte(regions), &user.Regions); err != nil {
		return domain.User{}, fmt.Errorf("failed to decode regions: %w", err)
	}
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	user.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return user, nil
}
