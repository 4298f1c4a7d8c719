package service

import (
	"bitwise74/otp-auth/internal/model"
	"bitwise74/otp-auth/internal/provider"
	"bitwise74/otp-auth/internal/repository"
	"bitwise74/otp-auth/pkg/security"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(model.User{}, model.PhoneVerification{}, model.SessionToken{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)

	// One connection keeps the background writes from hitting shared cache locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type enqueued struct {
	ID      string
	Name    string
	Payload SendOTPPayload
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []enqueued
	err  error
	n    int
}

func (f *fakeDispatcher) Enqueue(_ context.Context, name string, payload any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return "", f.err
	}

	f.n++
	id := "job-" + strconv.Itoa(f.n)

	b, _ := json.Marshal(payload)
	var p SendOTPPayload
	_ = json.Unmarshal(b, &p)

	f.jobs = append(f.jobs, enqueued{ID: id, Name: name, Payload: p})
	return id, nil
}

func (f *fakeDispatcher) Jobs() []enqueued {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]enqueued(nil), f.jobs...)
}

type fakeProvider struct {
	mu       sync.Mutex
	code     string
	sendErr  error
	checkErr error
	reject   bool
	sends    []string
	checks   int
	// Runs before every check is answered
	onCheck  func()
}

func (f *fakeProvider) Send(_ context.Context, phone, channel string) (*provider.SendResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}

	if f.reject {
		return &provider.SendResult{Accepted: false, Status: "failed"}, nil
	}

	f.sends = append(f.sends, phone+"/"+channel)
	return &provider.SendResult{Accepted: true, Reference: "VE123", Status: "pending"}, nil
}

func (f *fakeProvider) Check(_ context.Context, _ string, code string) (*provider.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.checks++

	if f.onCheck != nil {
		f.onCheck()
	}

	if f.checkErr != nil {
		return nil, f.checkErr
	}

	if code == f.code {
		return &provider.CheckResult{Approved: true, Status: "approved"}, nil
	}

	return &provider.CheckResult{Approved: false, Status: "pending"}, nil
}

func (f *fakeProvider) Checks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

var errProviderDown = errors.New("connection refused")

// env is a verifier, sessions and auth sharing one database
type env struct {
	db         *gorm.DB
	clock      *clock
	dispatcher *fakeDispatcher
	provider   *fakeProvider
	verifs     *repository.Verifications
	users      *repository.Users
	tokens     *repository.SessionTokens
	verifier   *Verifier
	sessions   *Sessions
	auth       *Auth
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		db:         newTestDB(t),
		clock:      newClock(),
		dispatcher: &fakeDispatcher{},
		provider:   &fakeProvider{code: "123456"},
	}

	e.verifs = repository.NewVerifications(e.db)
	e.users = repository.NewUsers(e.db)
	e.tokens = repository.NewSessionTokens(e.db)

	e.verifier = NewVerifier(e.verifs, e.users, e.dispatcher, e.provider, VerifierOpts{Now: e.clock.Now})

	signer, err := security.NewSessionSigner("test-secret", e.clock.Now)
	require.NoError(t, err)

	e.sessions = NewSessions(e.tokens, signer, e.clock.Now)
	e.auth = NewAuth(e.db, e.verifier, e.sessions, AuthOpts{Now: e.clock.Now})

	return e
}

func (e *env) createUser(t *testing.T, cc, pn string) *model.User {
	t.Helper()

	u := &model.User{
		FirstName:   "Jane",
		LastName:    "Doe",
		Username:    "jane_" + strings.TrimPrefix(cc, "+") + pn,
		Email:       "jane" + pn + "@example.com",
		CountryCode: cc,
		PhoneNumber: pn,
		Status:      model.UserStatusActive,
	}
	require.NoError(t, e.users.Create(context.Background(), u))

	return u
}
