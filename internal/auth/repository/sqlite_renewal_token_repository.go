package repository

import (
	"context"
	"database/sql"
	"time"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	"github.com/AlibekovAA/panel-auth/internal/common/db"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

const sqliteRenewalColumns = `id, token_hash, subject_id, expires_at, revoked,
	device_user_agent, device_ip, device_name, last_used_at, created_at, updated_at`

// SQLiteRenewalTokenRepository stores instants as unix nanoseconds. It
// expects a handle from db.OpenSQLite, which allows a single connection.
type SQLiteRenewalTokenRepository struct {
	db    *sql.DB
	log   *logger.Logger
	retry db.RetryConfig
}

func NewSQLiteRenewalTokenRepository(conn *sql.DB, log *logger.Logger) *SQLiteRenewalTokenRepository {
	return &SQLiteRenewalTokenRepository{
		db:    conn,
		log:   log,
		retry: db.DefaultRetryConfig,
	}
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sqlRow interface {
	Scan(dest ...interface{}) error
}

func (r *SQLiteRenewalTokenRepository) Create(ctx context.Context, token authdomain.RenewalToken) error {
	start := time.Now()
	err := insertSQLiteRenewalToken(ctx, r.db, token)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration("create renewal token", start)
		return ErrDuplicateTokenHash
	}
	return db.HandleExecError(err, "create renewal token", start)
}

func (r *SQLiteRenewalTokenRepository) FindActiveByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error) {
	start := time.Now()
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sqliteRenewalColumns+` FROM renewal_tokens WHERE token_hash = ? AND revoked = 0`,
		hash,
	)
	token, err := scanSQLiteRenewalToken(row)
	if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "find active renewal token", start); err != nil {
		return authdomain.RenewalToken{}, err
	}
	return token, nil
}

func (r *SQLiteRenewalTokenRepository) FindByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error) {
	start := time.Now()
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+sqliteRenewalColumns+` FROM renewal_tokens WHERE token_hash = ?`,
		hash,
	)
	token, err := scanSQLiteRenewalToken(row)
	if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "find renewal token", start); err != nil {
		return authdomain.RenewalToken{}, err
	}
	return token, nil
}

func (r *SQLiteRenewalTokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	_, err := r.db.ExecContext(
		ctx,
		`UPDATE renewal_tokens SET last_used_at = ?, updated_at = ? WHERE id = ?`,
		at.UnixNano(),
		at.UnixNano(),
		id,
	)
	return db.HandleExecError(err, "touch renewal token", start)
}

func (r *SQLiteRenewalTokenRepository) Rotate(ctx context.Context, hash string, at time.Time, successor SuccessorFunc) (authdomain.RenewalToken, error) {
	var next authdomain.RenewalToken

	err := db.RetryWithBackoff(ctx, r.log, r.retry, func() error {
		return db.WithSQLTx(ctx, r.db, func(tx *sql.Tx) error {
			start := time.Now()
			row := tx.QueryRowContext(
				ctx,
				`UPDATE renewal_tokens
				 SET revoked = 1, updated_at = ?
				 WHERE token_hash = ? AND revoked = 0
				 RETURNING `+sqliteRenewalColumns,
				at.UnixNano(),
				hash,
			)

			consumed, err := scanSQLiteRenewalToken(row)
			if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "consume renewal token", start); err != nil {
				return err
			}

			candidate, err := successor(consumed)
			if err != nil {
				return err
			}

			start = time.Now()
			err = insertSQLiteRenewalToken(ctx, tx, candidate)
			if db.IsUniqueViolation(err) {
				return ErrDuplicateTokenHash
			}
			if err := db.HandleExecError(err, "insert successor renewal token", start); err != nil {
				return err
			}

			next = candidate
			return nil
		})
	})
	if err != nil {
		return authdomain.RenewalToken{}, err
	}
	return next, nil
}

func (r *SQLiteRenewalTokenRepository) Revoke(ctx context.Context, hash string, at time.Time) (bool, error) {
	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE renewal_tokens SET revoked = 1, updated_at = ? WHERE token_hash = ? AND revoked = 0`,
		at.UnixNano(),
		hash,
	)
	if err != nil {
		return false, db.HandleExecError(err, "revoke renewal token", start)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, db.HandleExecError(err, "revoke renewal token", start)
	}
	db.MeasureQueryDuration("revoke renewal token", start)
	return n > 0, nil
}

func (r *SQLiteRenewalTokenRepository) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int64, error) {
	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE renewal_tokens SET revoked = 1, updated_at = ? WHERE subject_id = ? AND revoked = 0`,
		at.UnixNano(),
		subjectID,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "revoke subject renewal tokens", start)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.HandleExecError(err, "revoke subject renewal tokens", start)
	}
	db.MeasureQueryDuration("revoke subject renewal tokens", start)
	return n, nil
}

func (r *SQLiteRenewalTokenRepository) DeleteInvalid(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	res, err := r.db.ExecContext(
		ctx,
		`DELETE FROM renewal_tokens WHERE expires_at <= ? OR revoked = 1`,
		now.UnixNano(),
	)
	if err != nil {
		return 0, db.HandleExecError(err, "delete invalid renewal tokens", start)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, db.HandleExecError(err, "delete invalid renewal tokens", start)
	}
	db.MeasureQueryDuration("delete invalid renewal tokens", start)
	return n, nil
}

func insertSQLiteRenewalToken(ctx context.Context, conn sqlExecer, token authdomain.RenewalToken) error {
	var lastUsed sql.NullInt64
	if token.LastUsedAt != nil {
		lastUsed = sql.NullInt64{Int64: token.LastUsedAt.UnixNano(), Valid: true}
	}

	_, err := conn.ExecContext(
		ctx,
		`INSERT INTO renewal_tokens (id, token_hash, subject_id, expires_at, revoked,
			device_user_agent, device_ip, device_name, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.TokenHash,
		token.SubjectID,
		token.ExpiresAt.UnixNano(),
		token.Revoked,
		token.Device.UserAgent,
		token.Device.IP,
		token.Device.Name,
		lastUsed,
		token.CreatedAt.UnixNano(),
		token.UpdatedAt.UnixNano(),
	)
	return err
}

func scanSQLiteRenewalToken(row sqlRow) (authdomain.RenewalToken, error) {
	var (
		token     authdomain.RenewalToken
		expiresAt int64
		lastUsed  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&token.ID,
		&token.TokenHash,
		&token.SubjectID,
		&expiresAt,
		&token.Revoked,
		&token.Device.UserAgent,
		&token.Device.IP,
		&token.Device.Name,
		&lastUsed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return authdomain.RenewalToken{}, err
	}

	token.ExpiresAt = time.Unix(0, expiresAt).UTC()
	token.CreatedAt = time.Unix(0, createdAt).UTC()
	token.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if lastUsed.Valid {
		t := time.Unix(0, lastUsed.Int64).UTC()
		token.LastUsedAt = &t
	}
	return token, nil
}
