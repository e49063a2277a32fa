package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store/memory"
)

const testSecret = "test-secret-key-that-is-long-enough"

func newTestAuth(t *testing.T) (*AuthManager, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	return NewAuthManager(testSecret, time.Hour, repo, "", "", zerolog.Nop()), repo
}

func TestLoginAndParseTokenRoundtrip(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "Admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.DisplayName != "Administrador" {
		t.Fatalf("unexpected login response: %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	auth, repo := newTestAuth(t)

	user, err := repo.GetUserByUsername(context.Background(), "vendedor")
	if err != nil {
		t.Fatalf("seed user missing: %v", err)
	}
	if _, err := repo.SetUserActive(context.Background(), user.ID, false); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "vendedor", Password: "vendedor123"}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestLoginUpgradesLegacyPlaintextPassword(t *testing.T) {
	auth, repo := newTestAuth(t)

	if _, err := repo.CreateUser(context.Background(), domain.UserAccount{
		Username:    "legacy",
		Password:    "plaintext-pass",
		DisplayName: "Cuenta Antigua",
		Role:        domain.RoleEmployee,
	}); err != nil {
		t.Fatalf("create legacy user: %v", err)
	}

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "legacy", Password: "plaintext-pass"}); err != nil {
		t.Fatalf("legacy login failed: %v", err)
	}

	upgraded, err := repo.GetUserByUsername(context.Background(), "legacy")
	if err != nil {
		t.Fatalf("fetch legacy user: %v", err)
	}
	if !strings.HasPrefix(upgraded.Password, "$2") {
		t.Fatalf("password not upgraded to bcrypt: %q", upgraded.Password)
	}
	if bcrypt.CompareHashAndPassword([]byte(upgraded.Password), []byte("plaintext-pass")) != nil {
		t.Fatalf("upgraded hash does not verify")
	}

	// A second login must go through the bcrypt path.
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "legacy", Password: "plaintext-pass"}); err != nil {
		t.Fatalf("post-upgrade login failed: %v", err)
	}
}

func TestParseTokenRejectsForgedSecret(t *testing.T) {
	auth, _ := newTestAuth(t)
	other := NewAuthManager("another-secret-key-that-is-long-too", time.Hour, memory.NewSeeded(), "", "", zerolog.Nop())

	resp, err := other.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token from different secret to be rejected")
	}
}

// downStore simulates an unreachable user store.
type downStore struct{}

func (downStore) GetUserByUsername(context.Context, string) (*domain.UserAccount, error) {
	return nil, errors.New("connection refused")
}

func (downStore) ListUsers(context.Context) ([]domain.UserAccount, error) {
	return nil, errors.New("connection refused")
}

func (downStore) UpdateUserPassword(context.Context, string, string) error {
	return errors.New("connection refused")
}

func (downStore) AppendActivity(context.Context, domain.ActivityLog) error {
	return errors.New("connection refused")
}

func TestBreakGlassLoginWhenStoreIsDown(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, downStore{}, "rescate", "emergency-password", zerolog.Nop())

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: "rescate", Password: "emergency-password"})
	if err != nil {
		t.Fatalf("break-glass login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("break-glass role = %s, want admin", resp.Role)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse break-glass token: %v", err)
	}
	if actor.ID != "break-glass" {
		t.Fatalf("actor id = %s, want break-glass", actor.ID)
	}
}

func TestBreakGlassRejectedWhenStoreIsHealthy(t *testing.T) {
	repo := memory.NewSeeded()
	auth := NewAuthManager(testSecret, time.Hour, repo, "rescate", "emergency-password", zerolog.Nop())

	// The store answers and holds accounts, so the emergency credentials
	// must not work even though they match the configuration.
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "rescate", Password: "emergency-password"}); err == nil {
		t.Fatalf("expected break-glass to be refused while the store is healthy")
	}
}

func TestBreakGlassDisabledWhenUnconfigured(t *testing.T) {
	auth := NewAuthManager(testSecret, time.Hour, downStore{}, "", "", zerolog.Nop())

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "rescate", Password: "whatever-pass"}); err == nil {
		t.Fatalf("expected login to fail with no break-glass configured")
	}
}

func TestBreakGlassLoginIsAudited(t *testing.T) {
	repo := memory.NewSeeded()
	// Wipe the seeded accounts so the store is empty.
	for _, username := range []string{"admin", "vendedor"} {
		user, err := repo.GetUserByUsername(context.Background(), username)
		if err != nil {
			t.Fatalf("seed user missing: %v", err)
		}
		if err := repo.DeleteUser(context.Background(), user.ID); err != nil {
			t.Fatalf("delete seed user: %v", err)
		}
	}

	auth := NewAuthManager(testSecret, time.Hour, repo, "rescate", "emergency-password", zerolog.Nop())
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "rescate", Password: "emergency-password"}); err != nil {
		t.Fatalf("break-glass login failed: %v", err)
	}

	logs, err := repo.ListActivity(context.Background(), 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "break_glass_login" {
			found = true
		}
	}
	if !found {
		t.Fatalf("break-glass login not written to the activity log")
	}
}
