package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/coinquest/backend/internal/apperr"
	"github.com/coinquest/backend/internal/models"
	"github.com/coinquest/backend/internal/repository"
)

var (
	// ErrDuplicateEmail is returned when registering with an email that already exists.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	tokenTTL           = 24 * time.Hour
	referralCodeLength = 8
	referralAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeAttempts       = 5
)

// AccountStore is the account repository surface auth needs.
type AccountStore interface {
	Create(ctx context.Context, a *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// ReferralEnqueuer schedules referral attribution for a new account.
type ReferralEnqueuer interface {
	EnqueueReferral(ctx context.Context, accountID uuid.UUID, referralCode string) error
}

type RegisterInput struct {
	Email        string
	Password     string
	DisplayName  string
	Role         string
	ReferralCode string
}

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*models.Account, error)
	Login(ctx context.Context, email, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, string, error)
}

type service struct {
	accounts  AccountStore
	referrals ReferralEnqueuer
	secret    []byte
	clock     clockwork.Clock
	log       *slog.Logger
}

// NewService returns the auth service. referrals may be nil, in which case
// referral codes given at registration are ignored.
func NewService(accounts AccountStore, referrals ReferralEnqueuer, secret string, clock clockwork.Clock, log *slog.Logger) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{accounts: accounts, referrals: referrals, secret: []byte(secret), clock: clock, log: log}
}

type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*models.Account, error) {
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	// Admins are provisioned out of band.
	if in.Role != models.RoleUser && in.Role != models.RoleCreator {
		return nil, fmt.Errorf("role %q: %w", in.Role, apperr.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &models.Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		DisplayName:  in.DisplayName,
		PasswordHash: string(hash),
		Role:         in.Role,
	}

	for attempt := 0; ; attempt++ {
		acc.ReferralCode = newReferralCode()
		err = s.accounts.Create(ctx, acc)
		if !errors.Is(err, repository.ErrDuplicateAccount) {
			break
		}
		if _, lookupErr := s.accounts.GetByEmail(ctx, acc.Email); lookupErr == nil {
			return nil, ErrDuplicateEmail
		}
		if attempt == codeAttempts-1 {
			return nil, fmt.Errorf("allocate referral code: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if in.ReferralCode != "" && s.referrals != nil {
		if err := s.referrals.EnqueueReferral(ctx, acc.ID, in.ReferralCode); err != nil {
			s.log.Error("enqueue referral failed", "account_id", acc.ID, "referral_code", in.ReferralCode, "error", err)
		}
	}
	return acc, nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issueToken(acc.ID, acc.Role)
}

func (s *service) issueToken(userID uuid.UUID, role string) (string, error) {
	now := s.clock.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(_ context.Context, token string) (uuid.UUID, string, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.clock.Now))
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", ErrInvalidToken
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return id, c.Role, nil
}

func newReferralCode() string {
	b := make([]byte, referralCodeLength)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = referralAlphabet[int(b[i])%len(referralAlphabet)]
	}
	return string(b)
}
