package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mfa-service/internal/data/entity"
	"mfa-service/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type OTPRepository interface {
	// Issue supersedes the user's live codes for the purpose and stores otp
	Issue(ctx context.Context, otp *entity.OTP) error
	FindActive(ctx context.Context, userID uuid.UUID, purpose entity.OTPPurpose) (*entity.OTP, error)
	IncrementAttempts(ctx context.Context, otpID uuid.UUID) (int, error)
	// MarkVerified returns false when another request already consumed the code
	MarkVerified(ctx context.Context, otpID uuid.UUID, at time.Time) (bool, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type otpRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewOTPRepository(db database.PgxIface, log *zap.Logger) OTPRepository {
	return &otpRepository{
		db:  db,
		log: log.With(zap.String("repository", "otp")),
	}
}

const supersedeActiveOTPs = `
	UPDATE otps
	SET superseded_at = $3
	WHERE user_id = $1
	  AND purpose = $2
	  AND verified = false
	  AND superseded_at IS NULL
`

func (r *otpRepository) Issue(ctx context.Context, otp *entity.OTP) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin issue OTP tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// serialize issues for one owner on the user row
	var locked int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, otp.UserID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("lock user %s: %w", otp.UserID.String(), ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock user %s: %w", otp.UserID.String(), err)
	}

	if _, err := tx.Exec(ctx, supersedeActiveOTPs, otp.UserID, otp.Purpose, otp.IssuedAt); err != nil {
		r.log.Error("Failed to supersede OTPs",
			zap.Error(err),
			zap.String("user_id", otp.UserID.String()),
			zap.String("purpose", string(otp.Purpose)),
		)
		return fmt.Errorf("supersede OTPs for %s: %w", otp.UserID.String(), err)
	}

	query := `
		INSERT INTO otps (id, user_id, code_hash, purpose, issued_at, expires_at,
		                  verified, attempts, max_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = tx.Exec(ctx, query,
		otp.ID,
		otp.UserID,
		otp.CodeHash,
		otp.Purpose,
		otp.IssuedAt,
		otp.ExpiresAt,
		otp.Verified,
		otp.Attempts,
		otp.MaxAttempts,
		otp.CreatedAt,
	)
	if uniqueConstraint(err) == "uq_otps_active" {
		r.log.Warn("Concurrent OTP issue lost the race",
			zap.String("user_id", otp.UserID.String()),
			zap.String("purpose", string(otp.Purpose)),
		)
		return fmt.Errorf("create OTP for %s: %w", otp.UserID.String(), ErrOTPIssueConflict)
	}
	if err != nil {
		r.log.Error("Failed to create OTP",
			zap.Error(err),
			zap.String("user_id", otp.UserID.String()),
			zap.String("purpose", string(otp.Purpose)),
		)
		return fmt.Errorf("create OTP for %s: %w", otp.UserID.String(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit issue OTP tx: %w", err)
	}

	return nil
}

// FindActive returns the newest code that is neither verified nor superseded.
// Expired rows are returned too; the caller decides on expiry.
func (r *otpRepository) FindActive(ctx context.Context, userID uuid.UUID, purpose entity.OTPPurpose) (*entity.OTP, error) {
	query := `
		SELECT id, user_id, code_hash, purpose, issued_at, expires_at,
		       verified, verified_at, attempts, max_attempts, superseded_at, created_at
		FROM otps
		WHERE user_id = $1
		  AND purpose = $2
		  AND verified = false
		  AND superseded_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var otp entity.OTP
	err := r.db.QueryRow(ctx, query, userID, purpose).Scan(
		&otp.ID,
		&otp.UserID,
		&otp.CodeHash,
		&otp.Purpose,
		&otp.IssuedAt,
		&otp.ExpiresAt,
		&otp.Verified,
		&otp.VerifiedAt,
		&otp.Attempts,
		&otp.MaxAttempts,
		&otp.SupersededAt,
		&otp.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active OTP",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("purpose", string(purpose)),
		)
		return nil, fmt.Errorf("find active OTP for %s purpose %s: %w", userID.String(), purpose, err)
	}

	return &otp, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, otpID uuid.UUID) (int, error) {
	query := `
		UPDATE otps
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	err := r.db.QueryRow(ctx, query, otpID).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("OTP %s not found", otpID.String())
	}
	if err != nil {
		r.log.Error("Failed to increment OTP attempts",
			zap.Error(err),
			zap.String("otp_id", otpID.String()),
		)
		return 0, fmt.Errorf("increment attempts for OTP %s: %w", otpID.String(), err)
	}

	return attempts, nil
}

func (r *otpRepository) MarkVerified(ctx context.Context, otpID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE otps
		SET verified = true, verified_at = $2
		WHERE id = $1
		  AND verified = false
		  AND superseded_at IS NULL
		  AND expires_at > $2
		  AND (max_attempts <= 0 OR attempts < max_attempts)
	`

	result, err := r.db.Exec(ctx, query, otpID, at)
	if err != nil {
		r.log.Error("Failed to mark OTP as verified",
			zap.Error(err),
			zap.String("otp_id", otpID.String()),
		)
		return false, fmt.Errorf("mark OTP %s as verified: %w", otpID.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (r *otpRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM otps
		WHERE expires_at < $1
		   OR verified_at < $1
		   OR superseded_at < $1
	`

	result, err := r.db.Exec(ctx, query, before)
	if err != nil {
		r.log.Error("Failed to delete stale OTPs", zap.Error(err))
		return 0, fmt.Errorf("delete stale OTPs: %w", err)
	}

	return result.RowsAffected(), nil
}
