package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/crypto/bcrypt"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/auth"
	"github.com/fittrack/server/internal/server/config"
	"github.com/fittrack/server/internal/server/models"
	blacklistrepo "github.com/fittrack/server/internal/server/repositories/blacklist"
	progressrepo "github.com/fittrack/server/internal/server/repositories/progress"
	pushtokensrepo "github.com/fittrack/server/internal/server/repositories/pushtokens"
	sessionsrepo "github.com/fittrack/server/internal/server/repositories/sessions"
	usersrepo "github.com/fittrack/server/internal/server/repositories/users"
)

const testUserID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		TokenIssuer:                  "test",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
	}
}

func newAuthService(t *testing.T, db *sql.DB, rm *fakeRepoManager) *AuthService {
	t.Helper()
	return NewAuthService(db, rm, nil, testConfig(), logging.Discard())
}

type fakeUsersRepo struct {
	createOut *models.User
	createErr error

	getOut *models.User
	getErr error

	failedLoginCount  int
	failedLoginErr    error
	recordedFailures  int
	resetCalled       bool
	lockedUntil       *time.Time
	lastLoginUpdated  bool
	lastLoginErr      error
	metricsWorkouts   int
	metricsReps       int
	metricsScore      float64
	metricsUpdateFail error

	updatedHash       string
	updatePasswordErr error
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.getOut, nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	if f.updatePasswordErr != nil {
		return f.updatePasswordErr
	}
	f.updatedHash = passwordHash
	return nil
}

func (f *fakeUsersRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	f.lastLoginUpdated = true
	return f.lastLoginErr
}

func (f *fakeUsersRepo) RecordFailedLogin(ctx context.Context, id string) (int, error) {
	if f.failedLoginErr != nil {
		return 0, f.failedLoginErr
	}
	f.recordedFailures++
	f.failedLoginCount++
	return f.failedLoginCount, nil
}

func (f *fakeUsersRepo) ResetFailedLogins(ctx context.Context, id string) error {
	f.resetCalled = true
	return nil
}

func (f *fakeUsersRepo) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	f.lockedUntil = &until
	return nil
}

func (f *fakeUsersRepo) UpdateWorkoutMetrics(ctx context.Context, id string, totalWorkouts, totalReps int, avgFormScore float64) error {
	f.metricsWorkouts = totalWorkouts
	f.metricsReps = totalReps
	f.metricsScore = avgFormScore
	return f.metricsUpdateFail
}

type fakeLedger struct {
	revoked map[string]bool
	entries []*models.RevokedToken

	revokeErr    error
	isRevokedErr error
	prunedCount  int64
}

func (f *fakeLedger) Revoke(ctx context.Context, entry *models.RevokedToken) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	if f.revoked == nil {
		f.revoked = map[string]bool{}
	}
	f.revoked[entry.JTI] = true
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedger) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if f.isRevokedErr != nil {
		return false, f.isRevokedErr
	}
	return f.revoked[jti], nil
}

func (f *fakeLedger) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	return f.prunedCount, nil
}

type fakeRepoManager struct {
	u  *fakeUsersRepo
	l  *fakeLedger
	s  *fakeSessionsRepo
	p  *fakeProgressRepo
	pt *fakePushTokensRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository      { return m.u }
func (m *fakeRepoManager) Blacklist(db dbx.DBTX) blacklistrepo.Ledger  { return m.l }

func (m *fakeRepoManager) PushTokens(db dbx.DBTX) pushtokensrepo.Repository { return m.pt }
func (m *fakeRepoManager) Sessions(db dbx.DBTX) sessionsrepo.Repository     { return m.s }
func (m *fakeRepoManager) Progress(db dbx.DBTX) progressrepo.Repository     { return m.p }

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt error: %v", err)
	}
	return string(h)
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           testUserID,
		Email:        "user@example.com",
		IsActive:     true,
		PasswordHash: hashPassword(t, password),
	}
}

// --- Register ---

func TestRegister_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	u, err := s.Register(context.Background(), &models.User{Email: "a@b.c", Username: "a"}, "pw12345")
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "pw12345" {
		t.Fatalf("password not hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw12345")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{createErr: common.ErrAlreadyExists}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, err := s.Register(context.Background(), &models.User{Email: "a@b.c"}, "pw")
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

// --- Login ---

func TestLogin_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "pw12345")}
	rm := &fakeRepoManager{u: repo, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	user, pair, err := s.Login(context.Background(), "user@example.com", "pw12345")
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if user.ID != testUserID {
		t.Fatalf("wrong user returned")
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("token pair incomplete")
	}
	if !repo.resetCalled {
		t.Fatalf("failed login counter not reset")
	}
	if !repo.lastLoginUpdated {
		t.Fatalf("last login not updated")
	}

	codec := auth.NewCodec([]byte("k"), "test")
	claims, err := codec.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token does not decode: %v", err)
	}
	if claims.Subject != testUserID || claims.TokenType != models.TokenKindAccess {
		t.Fatalf("unexpected access claims: %+v", claims)
	}
	claims, err = codec.Decode(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token does not decode: %v", err)
	}
	if claims.TokenType != models.TokenKindRefresh {
		t.Fatalf("unexpected refresh kind: %s", claims.TokenType)
	}
}

func TestLogin_UnknownEmailAndWrongPasswordIndistinguishable(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rmUnknown := &fakeRepoManager{u: &fakeUsersRepo{getErr: common.ErrNotFound}, l: &fakeLedger{}}
	sUnknown := newAuthService(t, db, rmUnknown)
	_, _, errUnknown := sUnknown.Login(context.Background(), "nobody@example.com", "pw")

	rmWrong := &fakeRepoManager{u: &fakeUsersRepo{getOut: activeUser(t, "right")}, l: &fakeLedger{}}
	sWrong := newAuthService(t, db, rmWrong)
	_, _, errWrong := sWrong.Login(context.Background(), "user@example.com", "wrong")

	if !errors.Is(errUnknown, common.ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrong, common.ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", errWrong)
	}
}

func TestLogin_DisabledAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := activeUser(t, "pw")
	user.IsActive = false
	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, _, err := s.Login(context.Background(), "user@example.com", "pw")
	if !errors.Is(err, common.ErrAccountDisabled) {
		t.Fatalf("want ErrAccountDisabled, got %v", err)
	}
}

func TestLogin_LockedAccount(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := activeUser(t, "pw")
	until := time.Now().Add(10 * time.Minute)
	user.LockedUntil = &until
	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, _, err := s.Login(context.Background(), "user@example.com", "pw")
	if !errors.Is(err, common.ErrAccountLocked) {
		t.Fatalf("want ErrAccountLocked, got %v", err)
	}
}

func TestLogin_WrongPasswordHidesAccountStatus(t *testing.T) {
	// Without the right password a caller must not be able to tell a
	// disabled or locked account from a wrong-password failure.
	db, _ := newSQLMockDB(t)
	defer db.Close()

	disabled := activeUser(t, "right")
	disabled.IsActive = false

	locked := activeUser(t, "right")
	until := time.Now().Add(10 * time.Minute)
	locked.LockedUntil = &until

	for name, user := range map[string]*models.User{"disabled": disabled, "locked": locked} {
		t.Run(name, func(t *testing.T) {
			rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, l: &fakeLedger{}}
			s := newAuthService(t, db, rm)

			_, _, err := s.Login(context.Background(), "user@example.com", "wrong")
			if !errors.Is(err, common.ErrInvalidCredentials) {
				t.Fatalf("want ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestLogin_StoreTimeoutIsUnavailable(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{getErr: context.DeadlineExceeded}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, _, err := s.Login(context.Background(), "user@example.com", "pw")
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("want ErrStoreUnavailable, got %v", err)
	}
}

func TestLogin_ExpiredLockIsIgnored(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	user := activeUser(t, "pw")
	until := time.Now().Add(-1 * time.Minute)
	user.LockedUntil = &until
	rm := &fakeRepoManager{u: &fakeUsersRepo{getOut: user}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, pair, err := s.Login(context.Background(), "user@example.com", "pw")
	if err != nil {
		t.Fatalf("expired lock should not block login: %v", err)
	}
	if pair == nil {
		t.Fatalf("no token pair issued")
	}
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "right"), failedLoginCount: maxFailedLogins - 1}
	rm := &fakeRepoManager{u: repo, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, _, err := s.Login(context.Background(), "user@example.com", "wrong")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if repo.lockedUntil == nil {
		t.Fatalf("account should be locked after %d failures", maxFailedLogins)
	}
	if repo.lockedUntil.Before(time.Now().Add(lockoutDuration - time.Minute)) {
		t.Fatalf("lockout shorter than expected: %v", repo.lockedUntil)
	}
}

func TestLogin_FailureBelowThresholdDoesNotLock(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "right")}
	rm := &fakeRepoManager{u: repo, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, _, _ = s.Login(context.Background(), "user@example.com", "wrong")
	if repo.lockedUntil != nil {
		t.Fatalf("single failure should not lock the account")
	}
	if repo.recordedFailures != 1 {
		t.Fatalf("failure not recorded")
	}
}

func TestLogin_LastLoginFailureIsTolerated(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "pw"), lastLoginErr: errors.New("db glitch")}
	rm := &fakeRepoManager{u: repo, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, pair, err := s.Login(context.Background(), "user@example.com", "pw")
	if err != nil {
		t.Fatalf("login should survive last-login update failure: %v", err)
	}
	if pair == nil {
		t.Fatalf("no token pair issued")
	}
}

// --- Refresh ---

func TestRefresh_IssuesNewAccessKeepsRefresh(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	refresh, err := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}

	pair, err := s.Refresh(context.Background(), refresh)
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if pair.RefreshToken != refresh {
		t.Fatalf("refresh token must be echoed unchanged")
	}
	claims, err := s.codec.Decode(pair.AccessToken)
	if err != nil {
		t.Fatalf("new access token does not decode: %v", err)
	}
	if claims.TokenType != models.TokenKindAccess || claims.Subject != testUserID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)

	_, err := s.Refresh(context.Background(), access)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_RejectsRevokedToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: ledger}
	s := newAuthService(t, db, rm)

	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)
	claims, _ := s.codec.Decode(refresh)
	ledger.revoked = map[string]bool{claims.ID: true}

	_, err := s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_RejectsGarbage(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	_, err := s.Refresh(context.Background(), "not.a.token")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestRefresh_LedgerErrorIsInternal(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{isRevokedErr: errors.New("down")}}
	s := newAuthService(t, db, rm)

	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)

	_, err := s.Refresh(context.Background(), refresh)
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("want ErrInternal, got %v", err)
	}
}

// --- Logout ---

func TestLogout_RevokesBothTokens(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: ledger}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)
	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, 2*time.Hour)

	if err := s.Logout(context.Background(), access, refresh); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("want 2 revocations, got %d", len(ledger.entries))
	}
	for _, e := range ledger.entries {
		if e.Reason != models.RevocationReasonLogout {
			t.Fatalf("unexpected reason: %s", e.Reason)
		}
		if e.UserID != testUserID {
			t.Fatalf("unexpected user: %s", e.UserID)
		}
	}
}

func TestLogout_ToleratesOneBadToken(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: ledger}
	s := newAuthService(t, db, rm)

	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)

	if err := s.Logout(context.Background(), "garbage", refresh); err != nil {
		t.Fatalf("Logout should tolerate one bad token: %v", err)
	}
	if len(ledger.entries) != 1 {
		t.Fatalf("want 1 revocation, got %d", len(ledger.entries))
	}
	if ledger.entries[0].TokenType != models.TokenKindRefresh {
		t.Fatalf("wrong token revoked: %s", ledger.entries[0].TokenType)
	}
}

func TestLogout_BothTokensBad(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	// Two unparseable tokens make the request malformed, not
	// unauthenticated.
	err := s.Logout(context.Background(), "garbage", "also-garbage")
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
}

func TestLogout_RevokeErrorRollsBack(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	ledger := &fakeLedger{revokeErr: errors.New("db down")}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: ledger}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)

	err := s.Logout(context.Background(), access, "")
	if !errors.Is(err, common.ErrInternal) {
		t.Fatalf("want ErrInternal, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

type primingLedger struct {
	fakeLedger
	primed []*models.RevokedToken
}

func (l *primingLedger) Prime(ctx context.Context, entries []*models.RevokedToken) {
	l.primed = append(l.primed, entries...)
}

func TestLogout_PrimesLedgerCache(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	durable := &fakeLedger{}
	ledger := &primingLedger{}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: durable}
	s := NewAuthService(db, rm, ledger, testConfig(), logging.Discard())

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)
	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, 2*time.Hour)

	if err := s.Logout(context.Background(), access, refresh); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	// Durable writes go through the transaction-bound ledger, then the
	// injected ledger's cache is primed with the same entries.
	if len(durable.entries) != 2 {
		t.Fatalf("want 2 durable revocations, got %d", len(durable.entries))
	}
	if len(ledger.primed) != 2 {
		t.Fatalf("want 2 primed entries, got %d", len(ledger.primed))
	}
}

// --- ChangePassword ---

func TestChangePassword_UpdatesHashAndRevokesTokens(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeUsersRepo{getOut: activeUser(t, "old-pass")}
	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: repo, l: ledger}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)
	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, 2*time.Hour)

	err := s.ChangePassword(context.Background(), testUserID, "old-pass", "brand-new-pass", access, refresh)
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if repo.updatedHash == "" {
		t.Fatalf("password hash not updated")
	}
	if bcrypt.CompareHashAndPassword([]byte(repo.updatedHash), []byte("brand-new-pass")) != nil {
		t.Fatalf("stored hash does not match the new password")
	}
	if len(ledger.entries) != 2 {
		t.Fatalf("want both tokens revoked, got %d", len(ledger.entries))
	}
	for _, e := range ledger.entries {
		if e.Reason != models.RevocationReasonPasswordChanged {
			t.Fatalf("unexpected reason: %s", e.Reason)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestChangePassword_WrongCurrentPassword(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "old-pass")}
	rm := &fakeRepoManager{u: repo, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	err := s.ChangePassword(context.Background(), testUserID, "wrong", "brand-new-pass")
	if !errors.Is(err, common.ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if repo.updatedHash != "" {
		t.Fatalf("password must not change on a failed check")
	}
}

func TestChangePassword_IgnoresForeignTokens(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	repo := &fakeUsersRepo{getOut: activeUser(t, "old-pass")}
	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: repo, l: ledger}
	s := newAuthService(t, db, rm)

	// A token issued to another user must not end up on this user's
	// revocation list.
	foreign, _ := s.codec.Issue("someone-else", models.TokenKindAccess, time.Hour)

	err := s.ChangePassword(context.Background(), testUserID, "old-pass", "brand-new-pass", foreign, "")
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if len(ledger.entries) != 0 {
		t.Fatalf("want no revocations, got %d", len(ledger.entries))
	}
}

// --- Authenticate ---

func TestAuthenticate_Success(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)

	userID, err := s.Authenticate(context.Background(), access)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if userID != testUserID {
		t.Fatalf("want %s, got %s", testUserID, userID)
	}
}

func TestAuthenticate_RevokedImmediately(t *testing.T) {
	db, mock := newSQLMockDB(t)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	ledger := &fakeLedger{}
	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: ledger}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue(testUserID, models.TokenKindAccess, time.Hour)
	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)

	if err := s.Logout(context.Background(), access, refresh); err != nil {
		t.Fatalf("Logout error: %v", err)
	}

	// The access token has not expired, but it must already be rejected.
	_, err := s.Authenticate(context.Background(), access)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken after logout, got %v", err)
	}
}

func TestAuthenticate_RejectsRefreshToken(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	refresh, _ := s.codec.Issue(testUserID, models.TokenKindRefresh, time.Hour)

	_, err := s.Authenticate(context.Background(), refresh)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticate_RejectsNonUUIDSubject(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{}}
	s := newAuthService(t, db, rm)

	access, _ := s.codec.Issue("not-a-uuid", models.TokenKindAccess, time.Hour)

	_, err := s.Authenticate(context.Background(), access)
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want ErrInvalidToken, got %v", err)
	}
}

// --- Sweep ---

func TestSweepBlacklist(t *testing.T) {
	db, _ := newSQLMockDB(t)
	defer db.Close()

	rm := &fakeRepoManager{u: &fakeUsersRepo{}, l: &fakeLedger{prunedCount: 9}}
	s := newAuthService(t, db, rm)

	n, err := s.SweepBlacklist(context.Background())
	if err != nil {
		t.Fatalf("SweepBlacklist error: %v", err)
	}
	if n != 9 {
		t.Fatalf("want 9, got %d", n)
	}
}
