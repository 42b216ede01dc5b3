package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/data/repository"
	"mfa-service/pkg/metrics"
	"mfa-service/pkg/ratelimit"
	"mfa-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OTPMessage is what gets delivered to the owner of a fresh code
type OTPMessage struct {
	User          *entity.User
	Purpose       entity.OTPPurpose
	Code          string
	ExpiresAt     time.Time
	ExpiryMinutes int
}

// OTPNotifier delivers issued codes
type OTPNotifier interface {
	SendOTP(ctx context.Context, msg OTPMessage) error
}

// Notifier also records plain in-app notifications
type Notifier interface {
	OTPNotifier
	Notify(ctx context.Context, userID uuid.UUID, kind entity.NotificationType, title, body string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, subject, purpose string) error
}

type VerifyInput struct {
	UserID  uuid.UUID
	Purpose entity.OTPPurpose
	Code    string
	// ChallengeID pins verification to one issued code when set
	ChallengeID uuid.UUID
}

type MFAService interface {
	IssueChallenge(ctx context.Context, user *entity.User, purpose entity.OTPPurpose) (*entity.OTP, error)
	VerifyChallenge(ctx context.Context, in VerifyInput) (*entity.OTP, error)
}

type mfaService struct {
	otpRepo  repository.OTPRepository
	notifier OTPNotifier
	limiter  RateLimiter
	clock    utils.Clock
	config   utils.OTPConfig
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewMFAService(
	otpRepo repository.OTPRepository,
	notifier OTPNotifier,
	limiter RateLimiter,
	clock utils.Clock,
	config utils.OTPConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) MFAService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &mfaService{
		otpRepo:  otpRepo,
		notifier: notifier,
		limiter:  limiter,
		clock:    clock,
		config:   config,
		metrics:  m,
		log:      log.With(zap.String("service", "mfa")),
	}
}

func (s *mfaService) IssueChallenge(ctx context.Context, user *entity.User, purpose entity.OTPPurpose) (*entity.OTP, error) {
	if !purpose.Valid() {
		return nil, ErrInvalidPurpose
	}

	// 1. Rate limit
	if err := s.limiter.Allow(ctx, user.ID.String(), string(purpose)); err != nil {
		var le *ratelimit.LimitError
		if errors.As(err, &le) {
			s.metrics.OTPRateLimited.WithLabelValues(string(purpose)).Inc()
			s.log.Warn("OTP request throttled",
				zap.String("user_id", user.ID.String()),
				zap.String("purpose", string(purpose)),
				zap.Duration("retry_after", le.RetryAfter),
			)
			return nil, utils.NewTooManyRequestsError(le.Error(), le.RetryAfter)
		}
		return nil, fmt.Errorf("check OTP rate limit: %w", err)
	}

	// 2. Generate and hash
	code, err := utils.GenerateOTP(s.config.Length)
	if err != nil {
		return nil, err
	}
	codeHash, err := utils.HashOTP(code)
	if err != nil {
		return nil, fmt.Errorf("hash OTP: %w", err)
	}

	// 3. Build credential; expiry is fixed here
	otp, err := entity.NewOTP(user.ID, purpose, codeHash, s.config.ExpiryMinutes, s.config.MaxAttempts, s.clock.Now())
	if err != nil {
		return nil, err
	}

	// 4. Persist, superseding older live codes
	if err := s.otpRepo.Issue(ctx, otp); err != nil {
		if errors.Is(err, repository.ErrOTPIssueConflict) {
			s.metrics.OTPRateLimited.WithLabelValues(string(purpose)).Inc()
			return nil, ErrOTPIssueInProgress
		}
		return nil, fmt.Errorf("store OTP: %w", err)
	}

	s.metrics.OTPIssued.WithLabelValues(string(purpose)).Inc()
	s.log.Info("OTP issued",
		zap.String("user_id", user.ID.String()),
		zap.String("otp_id", otp.ID.String()),
		zap.String("purpose", string(purpose)),
		zap.Time("expires_at", otp.ExpiresAt),
	)
	s.log.Debug("OTP code", zap.String("otp_id", otp.ID.String()), zap.String("otp_code", code))

	// 5. Deliver
	err = s.notifier.SendOTP(ctx, OTPMessage{
		User:          user,
		Purpose:       purpose,
		Code:          code,
		ExpiresAt:     otp.ExpiresAt,
		ExpiryMinutes: s.config.ExpiryMinutes,
	})
	if err != nil {
		return nil, fmt.Errorf("deliver OTP %s: %w", otp.ID.String(), err)
	}

	return otp, nil
}

func (s *mfaService) VerifyChallenge(ctx context.Context, in VerifyInput) (*entity.OTP, error) {
	// 1. Load the live code
	otp, err := s.otpRepo.FindActive(ctx, in.UserID, in.Purpose)
	if err != nil {
		return nil, fmt.Errorf("load OTP: %w", err)
	}
	if otp == nil {
		return nil, ErrInvalidOrExpiredOTP
	}
	if in.ChallengeID != uuid.Nil && otp.ID != in.ChallengeID {
		s.log.Warn("OTP challenge superseded",
			zap.String("user_id", in.UserID.String()),
			zap.String("challenge_id", in.ChallengeID.String()),
		)
		return nil, ErrInvalidOrExpiredOTP
	}

	// 2. Terminal states
	now := s.clock.Now()
	if err := otp.CheckUsable(now); err != nil {
		if errors.Is(err, entity.ErrOTPLocked) {
			s.countVerify(in.Purpose, metrics.OutcomeLocked)
			return nil, ErrOTPLocked
		}
		s.countVerify(in.Purpose, metrics.OutcomeExpired)
		return nil, ErrInvalidOrExpiredOTP
	}

	// 3. Compare
	if !utils.CheckPasswordHash(in.Code, otp.CodeHash) {
		return nil, s.registerFailure(ctx, otp)
	}

	// 4. Consume; a concurrent request may have won
	ok, err := s.otpRepo.MarkVerified(ctx, otp.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark OTP verified: %w", err)
	}
	if !ok {
		s.countVerify(in.Purpose, metrics.OutcomeRace)
		s.log.Warn("OTP consumed concurrently", zap.String("otp_id", otp.ID.String()))
		return nil, ErrInvalidOrExpiredOTP
	}
	if err := otp.MarkVerified(now); err != nil {
		return nil, err
	}

	s.countVerify(in.Purpose, metrics.OutcomeVerified)
	s.log.Info("OTP verified",
		zap.String("user_id", in.UserID.String()),
		zap.String("otp_id", otp.ID.String()),
		zap.String("purpose", string(in.Purpose)),
	)

	return otp, nil
}

func (s *mfaService) registerFailure(ctx context.Context, otp *entity.OTP) error {
	attempts, err := s.otpRepo.IncrementAttempts(ctx, otp.ID)
	if err != nil {
		return fmt.Errorf("count failed OTP attempt: %w", err)
	}
	otp.Attempts = attempts

	s.log.Warn("Incorrect OTP",
		zap.String("user_id", otp.UserID.String()),
		zap.String("otp_id", otp.ID.String()),
		zap.Int("attempts", attempts),
	)

	// RemainingAttempts is -1 when attempts are unlimited
	left := otp.RemainingAttempts()
	if left == 0 {
		s.countVerify(otp.Purpose, metrics.OutcomeLocked)
		return ErrOTPLocked
	}

	s.countVerify(otp.Purpose, metrics.OutcomeInvalid)
	if left < 0 {
		return ErrIncorrectOTP
	}
	return utils.NewDomainError(fmt.Sprintf("incorrect OTP, %d attempts remaining", left))
}

func (s *mfaService) countVerify(purpose entity.OTPPurpose, outcome string) {
	s.metrics.OTPVerify.WithLabelValues(string(purpose), outcome).Inc()
}

// formatPurpose turns "email_verification" into "Email Verification"
func formatPurpose(purpose entity.OTPPurpose) string {
	p := strings.ReplaceAll(string(purpose), "_", " ")
	return cases.Title(language.English).String(p)
}
