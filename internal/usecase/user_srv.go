package usecase

import (
	"context"
	"errors"
	"fmt"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/dto/request"
	"mfa-service/internal/dto/response"
	"mfa-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	GetProfile(ctx context.Context, userID string) (*response.UserResponse, error)
	GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error)
	DeleteUser(ctx context.Context, userID string) error
	RequestMFAChange(ctx context.Context, userID string, enable bool) (*response.ChallengeResponse, error)
	ConfirmMFAChange(ctx context.Context, userID string, enable bool, req *request.ConfirmMFARequest) (*response.UserResponse, error)
}

type userService struct {
	userRepo repository.UserRepository
	mfa      MFAService
	notifier Notifier
	clock    utils.Clock
	log      *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	mfa MFAService,
	notifier Notifier,
	clock utils.Clock,
	log *zap.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		mfa:      mfa,
		notifier: notifier,
		clock:    clock,
		log:      log.With(zap.String("service", "user")),
	}
}

func (us *userService) GetProfile(ctx context.Context, userID string) (*response.UserResponse, error) {
	user, err := us.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) GetAllUsers(ctx context.Context, req *request.PaginatedRequest) (*response.PaginatedResponse[response.UserResponse], error) {
	if req.Page < 1 {
		req.Page = 1
	}
	req.PerPage = req.Limit()

	users, err := us.userRepo.FindAll(ctx, req.Limit(), req.Offset())
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	total, err := us.userRepo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	userResponses := make([]response.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = response.UserToResponse(user)
	}

	us.log.Info("Users retrieved",
		zap.Int("count", len(users)),
		zap.Int64("total", total),
		zap.Int("page", req.Page),
		zap.Int("per_page", req.PerPage),
	)

	return response.NewPaginatedResponse(userResponses, req.Page, req.PerPage, total), nil
}

func (us *userService) DeleteUser(ctx context.Context, userID string) error {
	user, err := us.findUser(ctx, userID)
	if err != nil {
		return err
	}

	if err := us.userRepo.Delete(ctx, user.ID, us.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}

	us.log.Info("User deleted", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// RequestMFAChange sends the code that confirms turning MFA on or off
func (us *userService) RequestMFAChange(ctx context.Context, userID string, enable bool) (*response.ChallengeResponse, error) {
	user, err := us.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	purpose, err := mfaChangePurpose(user, enable)
	if err != nil {
		return nil, err
	}

	otp, err := us.mfa.IssueChallenge(ctx, user, purpose)
	if err != nil {
		return nil, err
	}

	return response.ChallengeToResponse(otp, us.clock.Now()), nil
}

func (us *userService) ConfirmMFAChange(ctx context.Context, userID string, enable bool, req *request.ConfirmMFARequest) (*response.UserResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	user, err := us.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	purpose, err := mfaChangePurpose(user, enable)
	if err != nil {
		return nil, err
	}

	_, err = us.mfa.VerifyChallenge(ctx, VerifyInput{
		UserID:  user.ID,
		Purpose: purpose,
		Code:    req.OTP,
	})
	if err != nil {
		return nil, err
	}

	user.MFAEnabled = enable
	user.Touch(us.clock.Now())
	if err := us.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update MFA setting: %w", err)
	}

	title := "MFA disabled"
	if enable {
		title = "MFA enabled"
	}
	if err := us.notifier.Notify(ctx, user.ID, entity.NotificationMFAChanged, title,
		"Two-factor sign-in settings changed for your account."); err != nil {
		us.log.Warn("Failed to record MFA notification", zap.Error(err))
	}

	us.log.Info("MFA setting changed",
		zap.String("user_id", user.ID.String()),
		zap.Bool("mfa_enabled", enable))

	resp := response.UserToResponse(user)
	return &resp, nil
}

func (us *userService) findUser(ctx context.Context, userID string) (*entity.User, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		us.log.Warn("Invalid user ID", zap.String("user_id", userID), zap.Error(err))
		return nil, ErrInvalidUserID
	}

	user, err := us.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func mfaChangePurpose(user *entity.User, enable bool) (entity.OTPPurpose, error) {
	if enable {
		switch {
		case user.MFAEnabled:
			return "", ErrMFAAlreadyEnabled
		case !user.EmailVerified:
			return "", ErrEmailNotVerified
		}
		return entity.OTPPurposeMFAEnable, nil
	}

	if !user.MFAEnabled {
		return "", ErrMFANotEnabled
	}
	return entity.OTPPurposeMFADisable, nil
}
