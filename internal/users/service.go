package users

import (
	"context"
	"errors"
	"log/slog"

	"callcenter-platform/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials deliberately covers both unknown email and wrong
// password so responses do not reveal which one failed.
var ErrInvalidCredentials = errors.New("users: invalid credentials")

var ErrInactive = errors.New("users: account deactivated")

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, log: log}
}

// Authenticate checks an email/password pair and returns the account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		// Burn a hash comparison anyway so the unknown-email path takes
		// roughly as long as a wrong password.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return User{}, ErrInactive
	}
	return u, nil
}

// GetByID loads an account for token refresh; the stored role wins over
// whatever an old token carried.
func (s *Service) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		u, err = s.repo.GetByID(ctx, id)
		return err
	})
	return u, err
}

// HashPassword is the single place bcrypt cost is chosen.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// dummyHash is a valid bcrypt hash of an unguessable value.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()
