package users

import (
	"context"
	"errors"
	"testing"
)

func seedUser(t *testing.T, repo *MemoryRepo, id, email, password, role string, active bool) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo.Seed(User{
		ID:           id,
		CompanyID:    "co1",
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		IsActive:     active,
	})
}

func TestAuthenticate_Success(t *testing.T) {
	repo := NewMemoryRepo()
	seedUser(t, repo, "u1", "Ops@Example.com", "s3cret", "admin", true)
	svc := NewService(repo, nil)

	u, err := svc.Authenticate(context.Background(), "ops@example.com", "s3cret")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.ID != "u1" || u.Role != "admin" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestAuthenticate_WrongPassword(t *testing.T) {
	repo := NewMemoryRepo()
	seedUser(t, repo, "u1", "ops@example.com", "s3cret", "admin", true)
	svc := NewService(repo, nil)

	if _, err := svc.Authenticate(context.Background(), "ops@example.com", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_UnknownEmailSameError(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	if _, err := svc.Authenticate(context.Background(), "ghost@example.com", "whatever"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticate_DeactivatedAccount(t *testing.T) {
	repo := NewMemoryRepo()
	seedUser(t, repo, "u1", "ops@example.com", "s3cret", "admin", false)
	svc := NewService(repo, nil)

	if _, err := svc.Authenticate(context.Background(), "ops@example.com", "s3cret"); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestAuthenticate_EmptyInputs(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	if _, err := svc.Authenticate(context.Background(), "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}
