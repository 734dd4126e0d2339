package repository

import (
	"context"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	authdomain "github.com/AlibekovAA/panel-auth/internal/auth/domain"
	"github.com/AlibekovAA/panel-auth/internal/common/db"
	"github.com/AlibekovAA/panel-auth/internal/common/logger"
)

const pgRenewalColumns = `id, token_hash, subject_id, expires_at, revoked,
	device_user_agent, device_ip, device_name, last_used_at, created_at, updated_at`

type PgRenewalTokenRepository struct {
	pool  *pgxpool.Pool
	log   *logger.Logger
	retry db.RetryConfig
}

func NewPgRenewalTokenRepository(pool *pgxpool.Pool, log *logger.Logger) *PgRenewalTokenRepository {
	return &PgRenewalTokenRepository{
		pool:  pool,
		log:   log,
		retry: db.DefaultRetryConfig,
	}
}

func (r *PgRenewalTokenRepository) Create(ctx context.Context, token authdomain.RenewalToken) error {
	start := time.Now()
	err := insertPgRenewalToken(ctx, r.pool, token)
	if db.IsUniqueViolation(err) {
		db.MeasureQueryDuration("create renewal token", start)
		return ErrDuplicateTokenHash
	}
	return db.HandleExecError(err, "create renewal token", start)
}

func (r *PgRenewalTokenRepository) FindActiveByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+pgRenewalColumns+`
		 FROM renewal_tokens
		 WHERE token_hash = $1 AND revoked = FALSE`,
		hash,
	)

	token, err := scanPgRenewalToken(row)
	if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "find active renewal token", start); err != nil {
		return authdomain.RenewalToken{}, err
	}
	return token, nil
}

func (r *PgRenewalTokenRepository) FindByHash(ctx context.Context, hash string) (authdomain.RenewalToken, error) {
	start := time.Now()
	row := r.pool.QueryRow(
		ctx,
		`SELECT `+pgRenewalColumns+` FROM renewal_tokens WHERE token_hash = $1`,
		hash,
	)

	token, err := scanPgRenewalToken(row)
	if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "find renewal token", start); err != nil {
		return authdomain.RenewalToken{}, err
	}
	return token, nil
}

func (r *PgRenewalTokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	start := time.Now()
	_, err := r.pool.Exec(
		ctx,
		`UPDATE renewal_tokens SET last_used_at = $2, updated_at = $2 WHERE id = $1`,
		id,
		at,
	)
	return db.HandleExecError(err, "touch renewal token", start)
}

func (r *PgRenewalTokenRepository) Rotate(ctx context.Context, hash string, at time.Time, successor SuccessorFunc) (authdomain.RenewalToken, error) {
	var next authdomain.RenewalToken

	err := db.RetryWithBackoff(ctx, r.log, r.retry, func() error {
		return db.WithPgTx(ctx, r.pool, func(tx pgx.Tx) error {
			start := time.Now()
			row := tx.QueryRow(
				ctx,
				`UPDATE renewal_tokens
				 SET revoked = TRUE, updated_at = $2
				 WHERE token_hash = $1 AND revoked = FALSE
				 RETURNING `+pgRenewalColumns,
				hash,
				at,
			)

			consumed, err := scanPgRenewalToken(row)
			if err := db.HandleQueryError(err, ErrRenewalTokenNotFound, "consume renewal token", start); err != nil {
				return err
			}

			candidate, err := successor(consumed)
			if err != nil {
				return err
			}

			start = time.Now()
			err = insertPgRenewalToken(ctx, tx, candidate)
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

func (r *PgRenewalTokenRepository) Revoke(ctx context.Context, hash string, at time.Time) (bool, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE renewal_tokens SET revoked = TRUE, updated_at = $2
		 WHERE token_hash = $1 AND revoked = FALSE`,
		hash,
		at,
	)
	if err != nil {
		return false, db.HandleExecError(err, "revoke renewal token", start)
	}
	db.MeasureQueryDuration("revoke renewal token", start)
	return tag.RowsAffected() > 0, nil
}

func (r *PgRenewalTokenRepository) RevokeAllForSubject(ctx context.Context, subjectID string, at time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`UPDATE renewal_tokens SET revoked = TRUE, updated_at = $2
		 WHERE subject_id = $1 AND revoked = FALSE`,
		subjectID,
		at,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "revoke subject renewal tokens", start)
	}
	db.MeasureQueryDuration("revoke subject renewal tokens", start)
	return tag.RowsAffected(), nil
}

func (r *PgRenewalTokenRepository) DeleteInvalid(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	tag, err := r.pool.Exec(
		ctx,
		`DELETE FROM renewal_tokens WHERE expires_at <= $1 OR revoked = TRUE`,
		now,
	)
	if err != nil {
		return 0, db.HandleExecError(err, "delete invalid renewal tokens", start)
	}
	db.MeasureQueryDuration("delete invalid renewal tokens", start)
	return tag.RowsAffected(), nil
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func insertPgRenewalToken(ctx context.Context, conn pgExecer, token authdomain.RenewalToken) error {
	_, err := conn.Exec(
		ctx,
		`INSERT INTO renewal_tokens (id, token_hash, subject_id, expires_at, revoked,
			device_user_agent, device_ip, device_name, last_used_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		token.ID,
		token.TokenHash,
		token.SubjectID,
		token.ExpiresAt,
		token.Revoked,
		token.Device.UserAgent,
		token.Device.IP,
		token.Device.Name,
		token.LastUsedAt,
		token.CreatedAt,
		token.UpdatedAt,
	)
	return err
}

func scanPgRenewalToken(row pgx.Row) (authdomain.RenewalToken, error) {
	var token authdomain.RenewalToken
	err := row.Scan(
		&token.ID,
		&token.TokenHash,
		&token.SubjectID,
		&token.ExpiresAt,
		&token.Revoked,
		&token.Device.UserAgent,
		&token.Device.IP,
		&token.Device.Name,
		&token.LastUsedAt,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	return token, err
}
