// Package services contains server-side business logic. This file implements
// AuthService: registration, login with a brute-force lockout, token
// issue/refresh, logout via the revocation ledger, and per-request
// authentication.
package services

import (
	"context"
	"errors"
	"time"

	"database/sql"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/dbx"
	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/auth"
	"github.com/fittrack/server/internal/server/config"
	"github.com/fittrack/server/internal/server/models"
	"github.com/fittrack/server/internal/server/repositories/blacklist"
	"github.com/fittrack/server/internal/server/repositories/repomanager"
)

// Lockout policy: after maxFailedLogins consecutive failures the account is
// locked for lockoutDuration.
const (
	maxFailedLogins = 5
	lockoutDuration = 15 * time.Minute
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	// ledger serves the read path and may be cache-backed; revocation
	// writes always go through the transactional repository.
	ledger blacklist.Ledger
	codec  *auth.Codec
	logger logging.Logger

	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, ledger blacklist.Ledger, cfg *config.Config, logger logging.Logger) *AuthService {
	if ledger == nil {
		ledger = m.Blacklist(db)
	}
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		ledger:                       ledger,
		codec:                        auth.NewCodec([]byte(cfg.SecretKey), cfg.TokenIssuer),
		logger:                       logger,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates an account with a bcrypt-hashed password. A duplicate
// email or username surfaces as common.ErrAlreadyExists.
func (s *AuthService) Register(ctx context.Context, user *models.User, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, common.ErrInternal
	}
	user.PasswordHash = string(hash)

	repo := s.repomanager.Users(s.db)

	created, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		return nil, common.StoreError(err)
	}
	return created, nil
}

// Login verifies credentials and issues a token pair. An unknown email and a
// wrong password return the same error, so the endpoint cannot be used to
// probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, common.ErrInvalidCredentials
		}
		return nil, nil, common.StoreError(err)
	}

	// The password is verified before any account-status check: a caller
	// without the password must not learn that an account is disabled or
	// locked.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, user.ID)
		return nil, nil, common.ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, nil, common.ErrAccountDisabled
	}
	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		return nil, nil, common.ErrAccountLocked
	}

	if err := repo.ResetFailedLogins(ctx, user.ID); err != nil {
		return nil, nil, common.StoreError(err)
	}

	// Best-effort: a failed timestamp update must not fail the login.
	if err := repo.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		s.logger.Warn(ctx, "last login update failed", "user_id", user.ID, "error", err)
	}

	pair, err := s.generateTokenPair(user.ID)
	if err != nil {
		return nil, nil, common.ErrInternal
	}
	return user, pair, nil
}

func (s *AuthService) recordFailure(ctx context.Context, userID string) {
	repo := s.repomanager.Users(s.db)

	count, err := repo.RecordFailedLogin(ctx, userID)
	if err != nil {
		s.logger.Warn(ctx, "failed login bookkeeping error", "user_id", userID, "error", err)
		return
	}
	if count >= maxFailedLogins {
		until := time.Now().Add(lockoutDuration)
		if err := repo.SetLockedUntil(ctx, userID, until); err != nil {
			s.logger.Warn(ctx, "account lock error", "user_id", userID, "error", err)
		}
	}
}

func (s *AuthService) generateTokenPair(userID string) (*TokenPair, error) {
	accessToken, err := s.codec.Issue(userID, models.TokenKindAccess, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.Issue(userID, models.TokenKindRefresh, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token.
// The same refresh token is echoed back: its lifetime is fixed at login and
// refreshing does not extend it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.decodeKind(refreshToken, models.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, common.StoreError(err)
	}
	if revoked {
		return nil, common.ErrInvalidToken
	}

	accessToken, err := s.codec.Issue(claims.Subject, models.TokenKindAccess, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Logout revokes both tokens of a pair in one transaction. Tokens that fail
// to decode are skipped; when neither token decodes the call fails with
// common.ErrInvalidInput, a bad-request rather than an authentication
// failure. Revoking an already-revoked token is a no-op, so repeating a
// logout is safe.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var entries []*models.RevokedToken

	for kind, token := range map[string]string{
		models.TokenKindAccess:  accessToken,
		models.TokenKindRefresh: refreshToken,
	} {
		if token == "" {
			continue
		}
		claims, err := s.decodeKind(token, kind)
		if err != nil {
			continue
		}
		entries = append(entries, &models.RevokedToken{
			JTI:       claims.ID,
			UserID:    claims.Subject,
			TokenType: claims.TokenType,
			ExpiresAt: claims.ExpiresAt.Time,
			Reason:    models.RevocationReasonLogout,
		})
	}

	if len(entries) == 0 {
		return common.ErrInvalidInput
	}

	return s.revokeEntries(ctx, entries)
}

// RevokeUserTokens blacklists the given token identifiers for a user, e.g.
// after a password change.
func (s *AuthService) RevokeUserTokens(ctx context.Context, userID string, jtis []string, expiresAt time.Time, reason string) error {
	entries := make([]*models.RevokedToken, 0, len(jtis))
	for _, jti := range jtis {
		entries = append(entries, &models.RevokedToken{
			JTI:       jti,
			UserID:    userID,
			ExpiresAt: expiresAt,
			Reason:    reason,
		})
	}
	return s.revokeEntries(ctx, entries)
}

// revokeEntries writes the entries durably in one transaction, then primes
// the ledger's read cache so the next IsRevoked does not need Postgres.
func (s *AuthService) revokeEntries(ctx context.Context, entries []*models.RevokedToken) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		ledger := s.repomanager.Blacklist(tx)
		for _, e := range entries {
			if err := ledger.Revoke(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return common.StoreError(err)
	}

	if p, ok := s.ledger.(blacklist.CachePrimer); ok {
		p.Prime(ctx, entries)
	}
	return nil
}

// ChangePassword verifies the current password and stores a new hash. Any
// presented tokens belonging to the user are revoked in the same call, so
// sessions opened with the old password stop working.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string, tokens ...string) error {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrInvalidCredentials
		}
		return common.StoreError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return common.ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return common.ErrInternal
	}
	if err := repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return common.StoreError(err)
	}

	var jtis []string
	var latest time.Time
	for _, token := range tokens {
		if token == "" {
			continue
		}
		claims, err := s.codec.Decode(token)
		if err != nil || claims.Subject != userID {
			continue
		}
		jtis = append(jtis, claims.ID)
		if exp := claims.ExpiresAt.Time; exp.After(latest) {
			latest = exp
		}
	}
	if len(jtis) == 0 {
		return nil
	}
	return s.RevokeUserTokens(ctx, userID, jtis, latest, models.RevocationReasonPasswordChanged)
}

// Authenticate validates an access token and returns the authenticated user
// id. Revocation is checked on every call, so a logout takes effect
// immediately rather than when the access token expires.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.decodeKind(accessToken, models.TokenKindAccess)
	if err != nil {
		return "", err
	}

	revoked, err := s.ledger.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", common.StoreError(err)
	}
	if revoked {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}

// decodeKind decodes a token and checks its kind and subject. Every failure
// collapses to common.ErrInvalidToken.
func (s *AuthService) decodeKind(token, kind string) (*auth.Claims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	if claims.TokenType != kind {
		return nil, common.ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// SweepBlacklist removes ledger entries whose tokens have expired anyway.
func (s *AuthService) SweepBlacklist(ctx context.Context) (int64, error) {
	return s.ledger.PruneExpired(ctx, time.Now())
}
