package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tapfolio/tapfolio/internal/email"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits  = 6
	codeTTL     = 10 * time.Minute
	maxAttempts = 5
)

// accountStore is the storage interface consumed by Service.
type accountStore interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service implements passwordless sign-in: a one-time emailed code is
// exchanged for a session token. There are no passwords to store.
type Service struct {
	accounts accountStore
	codes    CodeStore
	mailer   email.Sender
	tokens   *TokenIssuer
	logger   *zap.Logger
}

func NewService(accounts accountStore, codes CodeStore, mailer email.Sender, tokens *TokenIssuer, logger *zap.Logger) *Service {
	return &Service{
		accounts: accounts,
		codes:    codes,
		mailer:   mailer,
		tokens:   tokens,
		logger:   logger,
	}
}

// NormalizeEmail canonicalizes an address for use as a lookup key.
func NormalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// RequestCode issues a fresh sign-in code for the address and emails
// it. Requesting again replaces the outstanding code.
func (s *Service) RequestCode(ctx context.Context, addr string) error {
	addr = NormalizeEmail(addr)
	if !strings.Contains(addr, "@") {
		return fmt.Errorf("invalid email address")
	}

	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}
	if err := s.codes.Put(ctx, addr, string(hash), codeTTL); err != nil {
		return err
	}
	if err := email.SendLoginCode(ctx, s.mailer, addr, code, int(codeTTL.Minutes())); err != nil {
		return err
	}

	s.logger.Info("sign-in code issued", zap.String("email", addr))
	return nil
}

// VerifyCode checks a submitted code and, on success, returns the
// account (created on first sign-in) and a signed session token. The
// code is single-use.
func (s *Service) VerifyCode(ctx context.Context, addr, code string) (*Account, string, error) {
	addr = NormalizeEmail(addr)

	attempts, err := s.codes.Bump(ctx, addr, codeTTL)
	if err != nil {
		return nil, "", err
	}
	if attempts > maxAttempts {
		s.logger.Warn("sign-in attempt cap hit", zap.String("email", addr))
		if derr := s.codes.Delete(ctx, addr); derr != nil {
			s.logger.Warn("burn sign-in code", zap.Error(derr))
		}
		return nil, "", ErrTooManyAttempts
	}

	hash, ok, err := s.codes.Get(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrCodeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(strings.TrimSpace(code))) != nil {
		return nil, "", ErrCodeInvalid
	}

	if err := s.codes.Delete(ctx, addr); err != nil {
		s.logger.Warn("delete used sign-in code", zap.Error(err))
	}

	a, err := s.accounts.GetOrCreateByEmail(ctx, addr)
	if err != nil {
		return nil, "", err
	}
	token, err := s.tokens.Issue(a)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("session established",
		zap.String("email", addr),
		zap.String("user_id", a.ID.String()),
	)
	return a, token, nil
}

// Account returns the account behind a verified identity.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.accounts.GetByID(ctx, id)
}

// DeleteAccount removes the account row. The caller runs the wider
// cascade (referrals, profile) before this final step.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("account deleted", zap.String("user_id", id.String()))
	return nil
}

// generateCode returns a uniformly random numeric code with leading
// zeros preserved.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
