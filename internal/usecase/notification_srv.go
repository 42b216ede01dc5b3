package usecase

import (
	"context"
	"errors"
	"fmt"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/dto/request"
	"mfa-service/internal/dto/response"
	"mfa-service/pkg/mailer"
	"mfa-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type NotificationService interface {
	Notifier
	List(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.NotificationListResponse, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
}

type notificationService struct {
	repo   repository.NotificationRepository
	mailer EmailSender
	clock  utils.Clock
	log    *zap.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	mailer EmailSender,
	clock utils.Clock,
	log *zap.Logger,
) NotificationService {
	return &notificationService{
		repo:   repo,
		mailer: mailer,
		clock:  clock,
		log:    log.With(zap.String("service", "notification")),
	}
}

// SendOTP emails the code and leaves an inbox entry that never contains it
func (s *notificationService) SendOTP(ctx context.Context, msg OTPMessage) error {
	label := formatPurpose(msg.Purpose)

	text, html, err := mailer.RenderOTP(mailer.OTPEmail{
		Username:      msg.User.Username,
		Code:          msg.Code,
		Purpose:       label,
		ExpiryMinutes: msg.ExpiryMinutes,
	})
	if err != nil {
		return err
	}

	err = s.mailer.Send(mailer.Email{
		To:       []string{msg.User.Email},
		Subject:  fmt.Sprintf("Your %s code", label),
		Body:     text,
		HTMLBody: html,
	})
	if err != nil {
		s.log.Error("Failed to email OTP",
			zap.Error(err),
			zap.String("user_id", msg.User.ID.String()),
			zap.String("purpose", string(msg.Purpose)),
		)
		return fmt.Errorf("email OTP: %w", err)
	}

	return s.Notify(ctx, msg.User.ID, entity.NotificationOTPIssued,
		label+" code sent",
		fmt.Sprintf("A %s code was sent to %s. It expires at %s UTC.",
			label, msg.User.Email, msg.ExpiresAt.UTC().Format("15:04")),
	)
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, kind entity.NotificationType, title, body string) error {
	n := &entity.Notification{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: s.clock.Now(),
		},
		UserID: userID,
		Type:   kind,
		Title:  title,
		Body:   body,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, req *request.PaginatedRequest) (*response.NotificationListResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrInvalidUserID
	}

	if req.Page < 1 {
		req.Page = 1
	}
	req.PerPage = req.Limit()

	items, err := s.repo.FindByUserID(ctx, id, req.Limit(), req.Offset())
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountByUserID(ctx, id)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, id)
	if err != nil {
		return nil, err
	}

	data := make([]response.NotificationResponse, len(items))
	for i, n := range items {
		data[i] = response.NotificationToResponse(n)
	}

	return &response.NotificationListResponse{
		PaginatedResponse: response.NewPaginatedResponse(data, req.Page, req.PerPage, total),
		Unread:            unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ErrInvalidUserID
	}
	nid, err := uuid.Parse(notificationID)
	if err != nil {
		return ErrInvalidNotification
	}

	if err := s.repo.MarkRead(ctx, nid, uid, s.clock.Now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return err
	}
	return nil
}
