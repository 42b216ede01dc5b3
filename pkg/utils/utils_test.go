package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateOTP(t *testing.T) {
	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"default on zero", 0, 6},
		{"six digits", 6, 6},
		{"eight digits", 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				code, err := GenerateOTP(tt.length)
				if err != nil {
					t.Fatalf("generate: %v", err)
				}
				if len(code) != tt.want {
					t.Fatalf("len(%q) = %d, want %d", code, len(code), tt.want)
				}
				for _, r := range code {
					if r < '0' || r > '9' {
						t.Fatalf("code %q contains non-digit %q", code, r)
					}
				}
			}
		})
	}
}

func TestHashOTP(t *testing.T) {
	hash, err := HashOTP("123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPasswordHash("123456", hash) {
		t.Fatal("expected code to match its hash")
	}
	if CheckPasswordHash("654321", hash) {
		t.Fatal("expected different code to be rejected")
	}
}

func TestFixedClock(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*60*60)
	c := &FixedClock{T: time.Date(2024, 1, 1, 7, 0, 0, 0, loc)}

	if got := c.Now(); got.Location() != time.UTC {
		t.Fatalf("location = %v, want UTC", got.Location())
	}
	if got := c.Now(); !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("now = %v", got)
	}

	c.Advance(5 * time.Minute)
	if got := c.Now(); !got.Equal(time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)) {
		t.Fatalf("after advance now = %v", got)
	}
}

func TestValidateStruct(t *testing.T) {
	type req struct {
		Email string `json:"email" validate:"required,email"`
		OTP   string `json:"otp" validate:"required,len=6,numeric"`
	}

	if errs := ValidateStruct(req{Email: "a@b.co", OTP: "123456"}); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	errs := ValidateStruct(req{Email: "nope", OTP: "12"})
	if errs["email"] != "Invalid email format" {
		t.Fatalf("email error = %q", errs["email"])
	}
	if errs["otp"] != "Must be exactly 6 characters" {
		t.Fatalf("otp error = %q", errs["otp"])
	}

	want := "email: Invalid email format; otp: Must be exactly 6 characters"
	if got := FormatValidationErrors(errs); got != want {
		t.Fatalf("format = %q, want %q", got, want)
	}
}

func TestValidateOTPTag(t *testing.T) {
	type req struct {
		OTP string `json:"otp" validate:"required,otp"`
	}

	tests := []struct {
		code string
		ok   bool
	}{
		{"1234", true},
		{"0012345678", true},
		{"123", false},
		{"12345678901", false},
		{"12a456", false},
		{"", false},
	}
	for _, tt := range tests {
		errs := ValidateStruct(req{OTP: tt.code})
		if (len(errs) == 0) != tt.ok {
			t.Errorf("code %q: errs = %v, want ok=%v", tt.code, errs, tt.ok)
		}
	}
}

func TestDomainError(t *testing.T) {
	base := NewNotFoundError("user not found")
	wrapped := fmt.Errorf("load profile: %w", base)

	de, ok := AsDomainError(wrapped)
	if !ok {
		t.Fatal("expected wrapped domain error to be found")
	}
	if de.Status != http.StatusNotFound || de.Message != "user not found" {
		t.Fatalf("got %d %q", de.Status, de.Message)
	}

	if _, ok := AsDomainError(errors.New("boom")); ok {
		t.Fatal("plain error must not be a domain error")
	}
}

func TestResponseDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	ResponseDomainError(rec, NewDomainError("invalid or expired OTP"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	var body Response
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status || body.Message != "invalid or expired OTP" {
		t.Fatalf("body = %+v", body)
	}
}

func TestResponseDomainErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	ResponseDomainError(rec, NewTooManyRequestsError("please wait", 1500*time.Millisecond))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q, want 2", got)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserIDFromContext(ctx); ok {
		t.Fatal("empty context must not carry a user")
	}

	id := uuid.New()
	ctx = WithPrincipal(ctx, Principal{UserID: id, Role: "admin", Token: "tok"})

	if got, ok := GetUserIDFromContext(ctx); !ok || got != id {
		t.Fatalf("user id = %v, %v", got, ok)
	}
	if role, _ := GetRoleFromContext(ctx); role != "admin" {
		t.Fatalf("role = %q", role)
	}
	if tok, ok := GetTokenFromContext(SetUserContext(ctx, id, "admin")); ok {
		t.Fatalf("token %q survived SetUserContext", tok)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "APP_NAME=mfa-test\nJWT_SECRET=secret\nOTP_EXPIRY_MINUTES=5\nOTP_MAX_ATTEMPTS=3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.Name != "mfa-test" {
		t.Fatalf("app name = %q", cfg.App.Name)
	}
	if cfg.OTP.Expiry() != 5*time.Minute {
		t.Fatalf("expiry = %v", cfg.OTP.Expiry())
	}
	if cfg.OTP.MaxAttempts != 3 || cfg.OTP.Length != 6 {
		t.Fatalf("otp config = %+v", cfg.OTP)
	}
	if cfg.OTP.ResendCooldown != time.Minute {
		t.Fatalf("cooldown = %v", cfg.OTP.ResendCooldown)
	}
}

func TestLoadConfigRejectsNonPositiveExpiry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("JWT_SECRET=secret\nOTP_EXPIRY_MINUTES=0\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for zero expiry")
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Fatalf("secret = %q", cfg.JWT.Secret)
	}
	if cfg.OTP.ExpiryMinutes != 10 {
		t.Fatalf("expiry minutes = %d", cfg.OTP.ExpiryMinutes)
	}
}
