//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"dynamic-qr-platform/internal/domain"
	"dynamic-qr-platform/internal/domain/model"
	"dynamic-qr-platform/internal/domain/ports/repository"
	"dynamic-qr-platform/internal/usecase"
)

func TestUserUseCase_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("registration normalizes the id and assigns a free subscription", func(t *testing.T) {
		users := newMemUserRepo()
		subs := newMemSubRepo()
		subUC := usecase.NewSubscriptionUseCase(subs, nil, false, newTestLogger())
		uc := usecase.NewUserUseCase(users, subUC, newMockTxManager(), newTestLogger())

		usr, err := uc.Register(ctx, "auth0|64f-abc", "owner@example.com")
		if err != nil {
			t.Fatalf("register failed: %v", err)
		}
		if usr.ID != "auth0_64f_abc" {
			t.Errorf("expected normalized id, got %q", usr.ID)
		}

		sub, err := subUC.Get(ctx, repository.NoTX, usr.ID)
		if err != nil {
			t.Fatalf("expected a subscription after registration: %v", err)
		}
		if sub.Tier != model.TierFree {
			t.Errorf("expected free tier, got %s", sub.Tier)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active status, got %s", sub.Status)
		}
	})

	t.Run("repeat registration conflicts", func(t *testing.T) {
		users := newMemUserRepo()
		subUC := usecase.NewSubscriptionUseCase(newMemSubRepo(), nil, false, newTestLogger())
		uc := usecase.NewUserUseCase(users, subUC, newMockTxManager(), newTestLogger())

		if _, err := uc.Register(ctx, "auth0|64f-abc", "owner@example.com"); err != nil {
			t.Fatalf("first register failed: %v", err)
		}
		if _, err := uc.Register(ctx, "auth0|64f-abc", "other@example.com"); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got: %v", err)
		}
	})

	t.Run("empty identity or email is rejected", func(t *testing.T) {
		uc := usecase.NewUserUseCase(newMemUserRepo(), usecase.NewSubscriptionUseCase(newMemSubRepo(), nil, false, newTestLogger()), newMockTxManager(), newTestLogger())
		if _, err := uc.Register(ctx, "", "owner@example.com"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
		if _, err := uc.Register(ctx, "auth0|x", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestUserUseCase_Erase(t *testing.T) {
	ctx := context.Background()
	users := newMemUserRepo()
	subUC := usecase.NewSubscriptionUseCase(newMemSubRepo(), nil, false, newTestLogger())
	uc := usecase.NewUserUseCase(users, subUC, newMockTxManager(), newTestLogger())

	usr, err := uc.Register(ctx, "auth0|64f-abc", "owner@example.com")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := uc.Erase(ctx, usr.ID); err != nil {
		t.Fatalf("erase failed: %v", err)
	}
	if _, err := uc.Get(ctx, usr.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected user gone, got: %v", err)
	}

	// Erasing again is idempotent.
	if err := uc.Erase(ctx, usr.ID); err != nil {
		t.Fatalf("second erase must be a no-op, got: %v", err)
	}
}
