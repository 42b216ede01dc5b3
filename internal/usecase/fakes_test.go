package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"mfa-service/internal/data/entity"
	"mfa-service/internal/data/repository"
	"mfa-service/internal/worker"
	"mfa-service/pkg/auth"
	"mfa-service/pkg/mailer"
	"mfa-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// otpRecorder captures every code handed to it for delivery
type otpRecorder struct {
	mu       sync.Mutex
	messages []OTPMessage
	notes    []entity.Notification
}

func (r *otpRecorder) SendOTP(_ context.Context, msg OTPMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *otpRecorder) Notify(_ context.Context, userID uuid.UUID, kind entity.NotificationType, title, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, entity.Notification{UserID: userID, Type: kind, Title: title, Body: body})
	return nil
}

func (r *otpRecorder) sent() []OTPMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OTPMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *otpRecorder) last(t *testing.T) OTPMessage {
	t.Helper()
	msgs := r.sent()
	if len(msgs) == 0 {
		t.Fatalf("no OTP was sent")
	}
	return msgs[len(msgs)-1]
}

// syncStore is a ratelimit.Store whose operations are each atomic, like Redis
type syncStore struct {
	mu   sync.Mutex
	ttls map[string]time.Duration
	cnts map[string]int64
}

func newSyncStore() *syncStore {
	return &syncStore{ttls: map[string]time.Duration{}, cnts: map[string]int64{}}
}

func (s *syncStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[key], nil
}

func (s *syncStore) IncrWithExpire(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ttls[key]; !ok {
		s.ttls[key] = window
	}
	s.cnts[key]++
	return s.cnts[key], nil
}

func (s *syncStore) Set(_ context.Context, key string, _ string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls[key] = ttl
	return nil
}

func (s *syncStore) SetNX(_ context.Context, key string, _ string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ttls[key]; ok {
		return false, nil
	}
	s.ttls[key] = ttl
	return true, nil
}

type stubLimiter struct {
	err error
}

func (l stubLimiter) Allow(context.Context, string, string) error {
	return l.err
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (m *fakeMailer) Send(email mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

type fakeOTPRepo struct {
	mu   sync.Mutex
	rows []*entity.OTP
	// issueErr stands in for a concurrent issue that committed first
	issueErr error
}

func (r *fakeOTPRepo) Issue(_ context.Context, otp *entity.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issueErr != nil {
		return r.issueErr
	}
	r.supersede(otp.UserID, otp.Purpose, otp.IssuedAt)
	row := *otp
	r.rows = append(r.rows, &row)
	return nil
}

func (r *fakeOTPRepo) FindActive(_ context.Context, userID uuid.UUID, purpose entity.OTPPurpose) (*entity.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.UserID == userID && row.Purpose == purpose && !row.Verified && row.SupersededAt == nil {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeOTPRepo) supersede(userID uuid.UUID, purpose entity.OTPPurpose, at time.Time) {
	for _, row := range r.rows {
		if row.UserID == userID && row.Purpose == purpose && !row.Verified && row.SupersededAt == nil {
			ts := at
			row.SupersededAt = &ts
		}
	}
}

func (r *fakeOTPRepo) IncrementAttempts(_ context.Context, otpID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byID(otpID)
	if row == nil {
		return 0, repository.ErrNotFound
	}
	row.Attempts++
	return row.Attempts, nil
}

func (r *fakeOTPRepo) MarkVerified(_ context.Context, otpID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.byID(otpID)
	if row == nil || row.Verified || row.SupersededAt != nil || !at.Before(row.ExpiresAt) || row.IsLocked() {
		return false, nil
	}
	ts := at
	row.Verified = true
	row.VerifiedAt = &ts
	return true, nil
}

func (r *fakeOTPRepo) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*entity.OTP
	var n int64
	for _, row := range r.rows {
		if row.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	return n, nil
}

func (r *fakeOTPRepo) byID(id uuid.UUID) *entity.OTP {
	for _, row := range r.rows {
		if row.ID == id {
			return row
		}
	}
	return nil
}

func (r *fakeOTPRepo) get(id uuid.UUID) entity.OTP {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byID(id)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uuid.UUID]*entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

// Create enforces the same uniqueness as the partial indexes on live users
func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.DeletedAt != nil {
			continue
		}
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicateEmail)
		}
		if u.Username == user.Username {
			return fmt.Errorf("create user %s: %w", user.Email, repository.ErrDuplicateUsername)
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok && u.DeletedAt == nil {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.DeletedAt == nil && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindAll(_ context.Context, limit, offset int) ([]*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.User
	for _, u := range r.users {
		if u.DeletedAt == nil {
			cp := *u
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *fakeUserRepo) CountAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.DeletedAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.DeletedAt != nil {
		return repository.ErrNotFound
	}
	u.DeletedAt = &at
	u.IsActive = false
	return nil
}

func (r *fakeUserRepo) get(id uuid.UUID) entity.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[id]
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions []*entity.Session
}

func (r *fakeSessionRepo) Create(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
	return nil
}

func (r *fakeSessionRepo) FindValidSession(_ context.Context, token string) (*entity.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Token.String() == token && s.RevokedAt == nil {
			return s, nil
		}
	}
	return nil, nil
}

func (r *fakeSessionRepo) Revoke(_ context.Context, token string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.Token.String() == token && !s.IsRevoked() {
			s.RevokedAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeSessionRepo) RevokeAllUserSessions(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && !s.IsRevoked() {
			s.RevokedAt = &at
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) DeleteStale(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeSessionRepo) active(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []*entity.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
	return nil
}

func (r *fakeNotificationRepo) FindByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mine []*entity.Notification
	for _, n := range r.items {
		if n.UserID == userID {
			mine = append(mine, n)
		}
	}
	if offset >= len(mine) {
		return nil, nil
	}
	return mine[offset:min(offset+limit, len(mine))], nil
}

func (r *fakeNotificationRepo) CountByUserID(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, item := range r.items {
		if item.UserID == userID && item.ReadAt == nil {
			n++
		}
	}
	return n, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.ID == id && item.UserID == userID {
			if item.ReadAt == nil {
				ts := at
				item.ReadAt = &ts
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func testOTPConfig() utils.OTPConfig {
	return utils.OTPConfig{ExpiryMinutes: 5, Length: 6, MaxAttempts: 3}
}

func testConfig() *utils.Config {
	return &utils.Config{
		JWT: utils.JWTConfig{Secret: "test-secret", ExpiryHours: 24},
		OTP: testOTPConfig(),
	}
}

func newTestUser(t *testing.T, username, password string) *entity.User {
	t.Helper()
	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &entity.User{
		Base:          entity.Base{ID: uuid.New(), CreatedAt: t0, UpdatedAt: t0},
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  hash,
		Role:          entity.RoleCustomer,
		EmailVerified: true,
		IsActive:      true,
	}
}

// wrongCode returns a code of the same length that differs from code
func wrongCode(code string) string {
	last := code[len(code)-1]
	next := byte('0')
	if last == '0' {
		next = '1'
	}
	return code[:len(code)-1] + string(next)
}

type testEnv struct {
	clock    *utils.FixedClock
	otps     *fakeOTPRepo
	users    *fakeUserRepo
	sessions *fakeSessionRepo
	notes    *fakeNotificationRepo
	recorder *otpRecorder
	tasks    *worker.Tasks
	mfa      MFAService
	auth     AuthService
	user     UserService
}

func newTestEnv(t *testing.T, users ...*entity.User) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    &utils.FixedClock{T: t0},
		otps:     &fakeOTPRepo{},
		users:    newFakeUserRepo(users...),
		sessions: &fakeSessionRepo{},
		notes:    &fakeNotificationRepo{},
		recorder: &otpRecorder{},
		tasks:    worker.NewTasks(time.Second, zap.NewNop()),
	}

	repo := &repository.Repository{
		User:         env.users,
		Session:      env.sessions,
		OTP:          env.otps,
		Notification: env.notes,
	}
	cfg := testConfig()
	log := zap.NewNop()

	env.mfa = NewMFAService(repo.OTP, env.recorder, stubLimiter{}, env.clock, cfg.OTP, nil, log)
	env.auth = NewAuthService(repo, env.mfa, env.recorder, auth.NewChallengeManager(cfg.JWT.Secret), env.tasks, env.clock, cfg, log)
	env.user = NewUserService(repo.User, env.mfa, env.recorder, env.clock, log)
	return env
}

// drain waits for background sends started by the services
func (env *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.tasks.Shutdown(ctx); err != nil {
		t.Fatalf("background tasks: %v", err)
	}
}
