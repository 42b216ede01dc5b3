package usecase

import (
	"context"
	"errors"
	"testing"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/dto/request"
)

func TestEnableMFA(t *testing.T) {
	user := newTestUser(t, "alice", "secret123")
	env := newTestEnv(t, user)
	ctx := context.Background()
	id := user.ID.String()

	challenge, err := env.user.RequestMFAChange(ctx, id, true)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if challenge.Purpose != entity.OTPPurposeMFAEnable {
		t.Fatalf("purpose = %s", challenge.Purpose)
	}
	code := env.recorder.last(t).Code

	_, err = env.user.ConfirmMFAChange(ctx, id, true, &request.ConfirmMFARequest{OTP: wrongCode(code)})
	if err == nil {
		t.Fatalf("wrong code accepted")
	}
	if env.users.get(user.ID).MFAEnabled {
		t.Fatalf("MFA enabled by a wrong code")
	}

	resp, err := env.user.ConfirmMFAChange(ctx, id, true, &request.ConfirmMFARequest{OTP: code})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !resp.MFAEnabled || !env.users.get(user.ID).MFAEnabled {
		t.Fatalf("MFA not enabled")
	}
	if len(env.recorder.notes) != 1 || env.recorder.notes[0].Title != "MFA enabled" {
		t.Fatalf("notifications = %+v", env.recorder.notes)
	}
}

func TestDisableMFA(t *testing.T) {
	user := newTestUser(t, "alice", "secret123")
	user.MFAEnabled = true
	env := newTestEnv(t, user)
	ctx := context.Background()
	id := user.ID.String()

	if _, err := env.user.RequestMFAChange(ctx, id, false); err != nil {
		t.Fatalf("request: %v", err)
	}
	code := env.recorder.last(t).Code

	// a disable code cannot confirm enabling
	if _, err := env.user.ConfirmMFAChange(ctx, id, true, &request.ConfirmMFARequest{OTP: code}); !errors.Is(err, ErrMFAAlreadyEnabled) {
		t.Fatalf("err = %v, want ErrMFAAlreadyEnabled", err)
	}

	if _, err := env.user.ConfirmMFAChange(ctx, id, false, &request.ConfirmMFARequest{OTP: code}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if env.users.get(user.ID).MFAEnabled {
		t.Fatalf("MFA still enabled")
	}
}

func TestRequestMFAChangePreconditions(t *testing.T) {
	unverified := newTestUser(t, "dave", "secret123")
	unverified.EmailVerified = false
	enabled := newTestUser(t, "erin", "secret123")
	enabled.MFAEnabled = true
	plain := newTestUser(t, "frank", "secret123")
	env := newTestEnv(t, unverified, enabled, plain)

	tests := []struct {
		name   string
		userID string
		enable bool
		want   error
	}{
		{"email not verified", unverified.ID.String(), true, ErrEmailNotVerified},
		{"already enabled", enabled.ID.String(), true, ErrMFAAlreadyEnabled},
		{"not enabled", plain.ID.String(), false, ErrMFANotEnabled},
		{"bad id", "not-a-uuid", true, ErrInvalidUserID},
		{"missing user", "8d6f1c1e-0d4b-4b8a-9d55-3c0a4e1f2b7a", true, ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.user.RequestMFAChange(context.Background(), tt.userID, tt.enable); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(env.recorder.sent()); n != 0 {
		t.Fatalf("sent %d codes, want 0", n)
	}
}

func TestGetAllUsersPaginates(t *testing.T) {
	users := []*entity.User{
		newTestUser(t, "a-user", "secret123"),
		newTestUser(t, "b-user", "secret123"),
		newTestUser(t, "c-user", "secret123"),
	}
	env := newTestEnv(t, users...)

	resp, err := env.user.GetAllUsers(context.Background(), &request.PaginatedRequest{Page: 2, PerPage: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Username != "c-user" {
		t.Fatalf("data = %+v", resp.Data)
	}
	if resp.Pagination.Total != 3 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}
}

func TestDeleteUser(t *testing.T) {
	user := newTestUser(t, "alice", "secret123")
	env := newTestEnv(t, user)
	ctx := context.Background()

	if err := env.user.DeleteUser(ctx, user.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.user.GetProfile(ctx, user.ID.String()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("profile after delete err = %v, want ErrUserNotFound", err)
	}
	if err := env.user.DeleteUser(ctx, user.ID.String()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("second delete err = %v, want ErrUserNotFound", err)
	}
}
