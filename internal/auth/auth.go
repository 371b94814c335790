// Package auth registers and authenticates users with bcrypt password hashes
// and HS256 JWT sessions carried in an httpOnly cookie or a bearer header.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/agenthands/storyforge/internal/config"
	"github.com/agenthands/storyforge/internal/core/model"
	"github.com/agenthands/storyforge/internal/errs"
)

const (
	CookieName   = "auth_token"
	MinSecretLen = 32
	DefaultCost  = 12

	ConfigMessage = "Auth not configured. Add JWT_SECRET (min 32 chars) to .env."
	ResetMessage  = "If an account exists, you will receive a reset link."

	resetTokenBytes = 32
	resetTokenTTL   = time.Hour
)

var (
	ErrInvalidCredentials = errs.Unauthorized("Invalid email or password")
	ErrInvalidResetToken  = errs.Validation("Invalid or expired reset token. Request a new link.", nil)
)

type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) error
}

// ResetNotifier delivers a password reset link to a user.
type ResetNotifier func(ctx context.Context, u *model.User, link string)

type Service struct {
	Users  UserStore
	Secret []byte
	Expiry time.Duration
	Secure bool
	Cost   int
	AppURL string
	Logger *slog.Logger
	// Notify defaults to logging the link.
	Notify ResetNotifier

	now       func() time.Time
	dummyOnce sync.Once
	dummyHash []byte
}

func New(users UserStore, cfg config.AuthConfig, expiry time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		Users:  users,
		Secret: []byte(strings.TrimSpace(cfg.JWTSecret)),
		Expiry: expiry,
		Secure: cfg.CookieSecure,
		Cost:   DefaultCost,
		AppURL: strings.TrimRight(cfg.AppURL, "/"),
		Logger: logger,
		now:    time.Now,
	}
	s.Notify = s.logResetLink
	return s
}

// Ready reports a configuration error when the signing secret is unusable.
func (s *Service) Ready() error {
	if len(s.Secret) < MinSecretLen {
		return errs.Config(ConfigMessage, nil).WithOp("auth")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and returns a session token for it.
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, string, error) {
	if err := s.Ready(); err != nil {
		return nil, "", err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, "", err
	}
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		if errs.Is(err, errs.KindConflict) {
			return nil, "", errs.Conflict("An account with this email already exists")
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}
	token, err := s.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Login verifies credentials. Unknown emails still pay for a bcrypt compare
// so response timing does not reveal which addresses exist.
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	if err := s.Ready(); err != nil {
		return nil, "", err
	}
	u, err := s.Users.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil && !errs.Is(err, errs.KindNotFound) {
		return nil, "", fmt.Errorf("lookup user: %w", err)
	}

	hash := s.dummy()
	if u != nil {
		hash = []byte(u.PasswordHash)
	}
	if cmpErr := bcrypt.CompareHashAndPassword(hash, prehash(password)); cmpErr != nil || u == nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.Issue(u.ID)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword(prehash("storyforge-dummy-password"), s.Cost)
	})
	return s.dummyHash
}

// prehash reduces a password to a fixed 44-byte digest. bcrypt only reads
// the first 72 bytes of its input.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func (s *Service) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(prehash(password), s.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// RequestReset issues a one-hour reset token for the account at email and
// hands the link to Notify. Unknown addresses succeed silently.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	if err := s.Ready(); err != nil {
		return err
	}
	u, err := s.Users.GetUserByEmail(ctx, NormalizeEmail(email))
	if errs.Is(err, errs.KindNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.Users.SetResetToken(ctx, u.ID, hashResetToken(token), s.now().Add(resetTokenTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.Notify(ctx, u, s.AppURL+"/reset-password?token="+url.QueryEscape(token))
	return nil
}

// ResetPassword consumes an unexpired reset token and replaces the password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if err := s.Ready(); err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	err = s.Users.ResetPassword(ctx, hashResetToken(token), hash, s.now())
	if errs.Is(err, errs.KindNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// hashResetToken is the form a reset token is stored and looked up in.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *Service) logResetLink(_ context.Context, u *model.User, link string) {
	s.Logger.Info("password reset link issued", "user_id", u.ID, "link", link)
}

// Authenticate resolves a session token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, errs.Unauthorized("Not authenticated")
	}
	userID, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.GetUser(ctx, userID)
	if errs.Is(err, errs.KindNotFound) {
		return nil, errs.Unauthorized("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// Issue signs a token whose subject is userID.
func (s *Service) Issue(userID string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.Expiry)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the subject of a valid, unexpired HS256 token.
func (s *Service) Verify(token string) (string, error) {
	if err := s.Ready(); err != nil {
		return "", err
	}
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errs.Unauthorized("Session expired")
		}
		return "", errs.Unauthorized("Invalid or expired session")
	}
	return claims.Subject, nil
}

// SetCookie stores token in the session cookie.
func (s *Service) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.Expiry / time.Second),
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Service) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// TokenFromRequest reads the session cookie, falling back to an
// Authorization: Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
