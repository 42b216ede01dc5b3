package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/dto/request"
	"mfa-service/internal/dto/response"
	"mfa-service/pkg/auth"
	"mfa-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	CompleteMFALogin(ctx context.Context, req *request.MFALoginRequest) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	SendOTP(ctx context.Context, req *request.SendOTPRequest) (*response.ChallengeResponse, error)
	VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) error
	ForgotPassword(ctx context.Context, req *request.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) error
}

// TaskRunner runs work that outlives the request but not the process
type TaskRunner interface {
	Go(name string, fn func(ctx context.Context))
}

type authService struct {
	repo       *repository.Repository
	mfa        MFAService
	notifier   Notifier
	challenges *auth.ChallengeManager
	tasks      TaskRunner
	clock      utils.Clock
	config     *utils.Config
	log        *zap.Logger
}

func NewAuthService(
	repo *repository.Repository,
	mfa MFAService,
	notifier Notifier,
	challenges *auth.ChallengeManager,
	tasks TaskRunner,
	clock utils.Clock,
	config *utils.Config,
	log *zap.Logger,
) AuthService {
	return &authService{
		repo:       repo,
		mfa:        mfa,
		notifier:   notifier,
		challenges: challenges,
		tasks:      tasks,
		clock:      clock,
		config:     config,
		log:        log.With(zap.String("service", "auth")),
	}
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.AuthResponse, error) {
	// 1. Validate input
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	// 2. Email must be free
	existingUser, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existingUser != nil {
		return nil, ErrEmailTaken
	}

	// 3. Username must be free
	existingUser, err = s.repo.User.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existingUser != nil {
		return nil, ErrUsernameTaken
	}

	// 4. Hash password
	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 5. Create user
	user := entity.NewUser(req.Username, req.Email, hashedPassword, req.Phone, s.clock.Now())

	// the lookups above can lose a race with a concurrent register
	if err := s.repo.User.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrDuplicateUsername):
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// 6. Verification code goes out in the background
	s.tasks.Go("verification_otp", func(ctx context.Context) {
		s.sendVerificationOTP(ctx, user)
	})

	// 7. Auto login
	session, err := s.createSession(ctx, user.ID, "", "")
	if err != nil {
		s.log.Warn("Failed to create session after register",
			zap.Error(err), zap.String("user_id", user.ID.String()))
	}

	s.log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", user.Email))

	return response.AuthToResponse(user, session), nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	// 1. Validate
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, validationError(errs)
	}

	// 2. Find by email, then by username
	user, err := s.repo.User.FindByEmail(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	if user == nil {
		user, err = s.repo.User.FindByUsername(ctx, req.Username)
		if err != nil {
			return nil, fmt.Errorf("find user by username: %w", err)
		}
	}
	if user == nil {
		s.log.Warn("User not found for login", zap.String("identifier", req.Username))
		return nil, ErrInvalidCredentials
	}

	// 3. Password
	if !utils.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	// 4. Active
	if !user.IsActive {
		s.log.Warn("Inactive user tried to login", zap.String("user_id", user.ID.String()))
		return nil, ErrAccountDeactivated
	}

	// 5. Second factor
	if user.MFAEnabled {
		return s.startMFALogin(ctx, user)
	}

	session, err := s.createSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	return response.AuthToResponse(user, session), nil
}

func (s *authService) CompleteMFALogin(ctx context.Context, req *request.MFALoginRequest) (*response.AuthResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	// 1. Challenge token
	claims, err := s.challenges.Parse(req.ChallengeToken, s.clock.Now())
	if err != nil {
		s.log.Warn("Rejected MFA challenge token", zap.Error(err))
		return nil, ErrInvalidChallenge
	}

	// 2. Code
	_, err = s.mfa.VerifyChallenge(ctx, VerifyInput{
		UserID:      claims.UserID,
		Purpose:     entity.OTPPurposeLogin,
		Code:        req.OTP,
		ChallengeID: claims.ChallengeID,
	})
	if err != nil {
		return nil, err
	}

	// 3. Account may have changed since the password step
	user, err := s.repo.User.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	session, err := s.createSession(ctx, user.ID, req.UserAgent, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info("User logged in with MFA",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	return response.AuthToResponse(user, session), nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		s.log.Warn("Invalid token format", zap.Error(err))
		return utils.NewDomainError("invalid token format")
	}

	if err := s.repo.Session.Revoke(ctx, tokenUUID.String(), s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NewUnauthorizedError("session already ended")
		}
		return fmt.Errorf("revoke session: %w", err)
	}

	s.log.Info("User logged out")
	return nil
}

func (s *authService) SendOTP(ctx context.Context, req *request.SendOTPRequest) (*response.ChallengeResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	user, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("find user for OTP: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	purpose := entity.OTPPurpose(req.Type)
	if purpose == entity.OTPPurposeEmailVerification && user.EmailVerified {
		return nil, ErrEmailAlreadyVerified
	}

	otp, err := s.mfa.IssueChallenge(ctx, user, purpose)
	if err != nil {
		return nil, err
	}

	return response.ChallengeToResponse(otp, s.clock.Now()), nil
}

func (s *authService) VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Verify email validation failed", zap.Any("errors", errs))
		return validationError(errs)
	}

	user, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("find user for verification: %w", err)
	}
	if user == nil {
		return ErrInvalidOrExpiredOTP
	}
	if user.EmailVerified {
		return ErrEmailAlreadyVerified
	}

	_, err = s.mfa.VerifyChallenge(ctx, VerifyInput{
		UserID:  user.ID,
		Purpose: entity.OTPPurposeEmailVerification,
		Code:    req.OTP,
	})
	if err != nil {
		return err
	}

	user.EmailVerified = true
	user.Touch(s.clock.Now())
	if err := s.repo.User.Update(ctx, user); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	s.log.Info("Email verified",
		zap.String("email", req.Email),
		zap.String("user_id", user.ID.String()))

	return nil
}

// ForgotPassword does not reveal whether the email is registered
func (s *authService) ForgotPassword(ctx context.Context, req *request.ForgotPasswordRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}

	user, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("find user for password reset: %w", err)
	}
	if user == nil || !user.IsActive {
		s.log.Info("Password reset requested for unknown account", zap.String("email", req.Email))
		return nil
	}

	_, err = s.mfa.IssueChallenge(ctx, user, entity.OTPPurposePasswordReset)
	return err
}

func (s *authService) ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) error {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return validationError(errs)
	}

	user, err := s.repo.User.FindByEmail(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("find user for password reset: %w", err)
	}
	if user == nil {
		return ErrInvalidOrExpiredOTP
	}

	_, err = s.mfa.VerifyChallenge(ctx, VerifyInput{
		UserID:  user.ID,
		Purpose: entity.OTPPurposePasswordReset,
		Code:    req.OTP,
	})
	if err != nil {
		return err
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user.PasswordHash = hashedPassword
	user.Touch(s.clock.Now())
	if err := s.repo.User.Update(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// Every existing session dies with the old password
	revoked, err := s.repo.Session.RevokeAllUserSessions(ctx, user.ID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}

	if err := s.notifier.Notify(ctx, user.ID, entity.NotificationPasswordReset,
		"Password changed", "Your password was reset and all sessions were signed out."); err != nil {
		s.log.Warn("Failed to record password reset notification", zap.Error(err))
	}

	s.log.Info("Password reset",
		zap.String("user_id", user.ID.String()),
		zap.Int64("sessions_revoked", revoked))
	return nil
}

func (s *authService) startMFALogin(ctx context.Context, user *entity.User) (*response.AuthResponse, error) {
	otp, err := s.mfa.IssueChallenge(ctx, user, entity.OTPPurposeLogin)
	if err != nil {
		return nil, err
	}

	token, err := s.challenges.Issue(user.ID, otp.ID, otp.IssuedAt, otp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign challenge: %w", err)
	}

	challenge := response.ChallengeToResponse(otp, s.clock.Now())
	challenge.Token = token

	resp := response.AuthToResponse(user, nil)
	resp.MFARequired = true
	resp.Challenge = challenge

	s.log.Info("MFA challenge issued for login", zap.String("user_id", user.ID.String()))
	return resp, nil
}

func (s *authService) createSession(ctx context.Context, userID uuid.UUID, userAgent, ipAddress string) (*entity.Session, error) {
	now := s.clock.Now()
	hours := s.config.JWT.ExpiryHours
	if hours <= 0 {
		hours = 24
	}

	ttl := time.Duration(hours) * time.Hour
	session := entity.NewSession(userID, utils.GenerateSessionToken(), ttl, userAgent, ipAddress, now)

	if err := s.repo.Session.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *authService) sendVerificationOTP(ctx context.Context, user *entity.User) {
	if _, err := s.mfa.IssueChallenge(ctx, user, entity.OTPPurposeEmailVerification); err != nil {
		var de *utils.DomainError
		if errors.As(err, &de) {
			s.log.Warn("Verification OTP not sent", zap.String("reason", de.Message), zap.String("email", user.Email))
			return
		}
		s.log.Error("Failed to send verification OTP", zap.Error(err), zap.String("email", user.Email))
	}
}
