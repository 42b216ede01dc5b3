package adaptor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/dto/request"
	"mfa-service/internal/dto/response"
	"mfa-service/internal/usecase"
	"mfa-service/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuthService struct {
	err      error
	login    *request.LoginRequest
	response *response.AuthResponse
}

func (s *stubAuthService) Register(context.Context, *request.RegisterRequest) (*response.AuthResponse, error) {
	return s.response, s.err
}

func (s *stubAuthService) Login(_ context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	s.login = req
	return s.response, s.err
}

func (s *stubAuthService) CompleteMFALogin(context.Context, *request.MFALoginRequest) (*response.AuthResponse, error) {
	return s.response, s.err
}

func (s *stubAuthService) Logout(context.Context, string) error { return s.err }

func (s *stubAuthService) SendOTP(context.Context, *request.SendOTPRequest) (*response.ChallengeResponse, error) {
	return &response.ChallengeResponse{}, s.err
}

func (s *stubAuthService) VerifyEmail(context.Context, *request.VerifyEmailRequest) error {
	return s.err
}

func (s *stubAuthService) ForgotPassword(context.Context, *request.ForgotPasswordRequest) error {
	return s.err
}

func (s *stubAuthService) ResetPassword(context.Context, *request.ResetPasswordRequest) error {
	return s.err
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var body utils.Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantLevel   string
	}{
		{"domain default", utils.NewDomainError("invalid or expired OTP"), http.StatusBadRequest, "invalid or expired OTP", "warn"},
		{"unauthorized", utils.NewUnauthorizedError("invalid credentials"), http.StatusUnauthorized, "invalid credentials", "warn"},
		{"rate limited", utils.NewTooManyRequestsError("slow down", 30*time.Second), http.StatusTooManyRequests, "slow down", "warn"},
		{"wrapped domain", errors.Join(errors.New("ctx"), utils.NewNotFoundError("user not found")), http.StatusNotFound, "user not found", "warn"},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, "Internal server error", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			rec := httptest.NewRecorder()

			handleServiceError(rec, zap.New(core), tt.err, "do thing")

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body.Status || body.Message != tt.wantMessage {
				t.Fatalf("body = %+v", body)
			}
			if strings.Contains(body.Message, "connection refused") {
				t.Fatalf("internal cause leaked to client")
			}

			entries := logs.All()
			if len(entries) != 1 || entries[0].Level.String() != tt.wantLevel {
				t.Fatalf("log entries = %+v", entries)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	svc := &stubAuthService{response: &response.AuthResponse{UserID: uuid.NewString(), Token: "tok"}}
	h := NewAuthHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"username":"alice","password":"secret123"}`))
	req.Header.Set("User-Agent", "test-agent")
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.login.UserAgent != "test-agent" || svc.login.IPAddress != "10.1.2.3" {
		t.Fatalf("login request = %+v", svc.login)
	}
}

func TestLoginHandlerRejectsBadInput(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{}, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"username":`},
		{"missing password", `{"username":"alice"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestVerifyEmailHandlerMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ok", nil, http.StatusOK},
		{"domain", utils.NewDomainError("invalid or expired OTP"), http.StatusBadRequest},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&stubAuthService{err: tt.err}, zap.NewNop())
			rec := httptest.NewRecorder()
			body := `{"email":"alice@example.com","otp":"123456"}`

			h.VerifyEmail(rec, httptest.NewRequest(http.MethodPost, "/api/verify-email", strings.NewReader(body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

type stubNotificationService struct {
	userID, id string
	err        error
}

func (s *stubNotificationService) SendOTP(context.Context, usecase.OTPMessage) error { return nil }

func (s *stubNotificationService) Notify(context.Context, uuid.UUID, entity.NotificationType, string, string) error {
	return nil
}

func (s *stubNotificationService) List(_ context.Context, userID string, req *request.PaginatedRequest) (*response.NotificationListResponse, error) {
	s.userID = userID
	return &response.NotificationListResponse{
		PaginatedResponse: response.NewPaginatedResponse[response.NotificationResponse](nil, req.Page, req.PerPage, 0),
	}, s.err
}

func (s *stubNotificationService) MarkRead(_ context.Context, userID, id string) error {
	s.userID, s.id = userID, id
	return s.err
}

func TestMarkReadRoute(t *testing.T) {
	svc := &stubNotificationService{}
	h := NewNotificationHandler(svc, zap.NewNop())
	userID := uuid.New()
	notificationID := uuid.NewString()

	r := chi.NewRouter()
	r.Patch("/api/notifications/{id}/read", h.MarkRead)

	req := httptest.NewRequest(http.MethodPatch, "/api/notifications/"+notificationID+"/read", nil)
	req = req.WithContext(utils.SetUserContext(req.Context(), userID, "customer"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if svc.userID != userID.String() || svc.id != notificationID {
		t.Fatalf("service called with user %q id %q", svc.userID, svc.id)
	}
}

func TestNotificationListRequiresUser(t *testing.T) {
	h := NewNotificationHandler(&stubNotificationService{}, zap.NewNop())
	rec := httptest.NewRecorder()

	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/notifications", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestNotificationListEmptyData(t *testing.T) {
	h := NewNotificationHandler(&stubNotificationService{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/api/notifications?page=2&per_page=5", nil)
	req = req.WithContext(utils.SetUserContext(req.Context(), uuid.New(), "customer"))
	rec := httptest.NewRecorder()

	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) || !strings.Contains(rec.Body.String(), `"unread":0`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	up := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{"all up", map[string]HealthCheck{"postgres": up, "redis": up}, http.StatusOK, `"redis":"up"`},
		{"redis down", map[string]HealthCheck{"postgres": up, "redis": down}, http.StatusServiceUnavailable, `"redis":"down"`},
		{"no checks", nil, http.StatusOK, `"message":"OK"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.checks, zap.NewNop()).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("body = %s", rec.Body.String())
			}
			if strings.Contains(rec.Body.String(), "refused") {
				t.Fatalf("check error leaked: %s", rec.Body.String())
			}
		})
	}
}
