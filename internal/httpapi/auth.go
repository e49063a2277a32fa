package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"sportlentes/backend/internal/domain"
	"sportlentes/backend/internal/store"
	"sportlentes/backend/internal/xid"
)

// UserStore is the slice of the repository the auth manager needs.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	AppendActivity(ctx context.Context, entry domain.ActivityLog) error
}

type AuthManager struct {
	secret             []byte
	tokenTTL           time.Duration
	userStore          UserStore
	breakGlassUser     string
	breakGlassPassword string
	log                zerolog.Logger
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
	UID  string `json:"uid"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, breakGlassUser string, breakGlassPassword string, log zerolog.Logger) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:             []byte(secret),
		tokenTTL:           tokenTTL,
		userStore:          userStore,
		breakGlassUser:     strings.ToLower(strings.TrimSpace(breakGlassUser)),
		breakGlassPassword: breakGlassPassword,
		log:                log,
	}
}

// Login authenticates against the user store. The break-glass credentials
// from the environment are accepted only when the store cannot answer
// (unreachable or holding no accounts), and every such login is written to
// the activity log.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	user, err := a.userStore.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if !a.verifyStoredPassword(ctx, user, req.Password) {
			return domain.LoginResponse{}, errors.New("invalid credentials")
		}
		if !user.Active {
			return domain.LoginResponse{}, errors.New("account is inactive")
		}
		return a.issue(user.ID, user.Username, user.DisplayName, user.Role)

	case errors.Is(err, store.ErrNotFound):
		if a.storeIsEmpty(ctx) && a.matchBreakGlass(username, req.Password) {
			return a.breakGlassLogin(ctx, username)
		}
		return domain.LoginResponse{}, errors.New("invalid credentials")

	default:
		if a.matchBreakGlass(username, req.Password) {
			return a.breakGlassLogin(ctx, username)
		}
		return domain.LoginResponse{}, err
	}
}

// verifyStoredPassword checks the bcrypt hash and transparently upgrades any
// legacy plain-text password still sitting in the store.
func (a *AuthManager) verifyStoredPassword(ctx context.Context, user *domain.UserAccount, input string) bool {
	if isPasswordHash(user.Password) {
		return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input)) == nil
	}
	if user.Password == "" || user.Password != input {
		return false
	}
	if hashed, err := hashPassword(input); err == nil {
		if err := a.userStore.UpdateUserPassword(ctx, user.Username, hashed); err != nil {
			a.log.Warn().Err(err).Str("username", user.Username).Msg("failed to upgrade legacy password")
		}
	}
	return true
}

func (a *AuthManager) storeIsEmpty(ctx context.Context) bool {
	users, err := a.userStore.ListUsers(ctx)
	return err == nil && len(users) == 0
}

func (a *AuthManager) matchBreakGlass(username string, password string) bool {
	if a.breakGlassUser == "" || a.breakGlassPassword == "" {
		return false
	}
	return username == a.breakGlassUser && password == a.breakGlassPassword
}

func (a *AuthManager) breakGlassLogin(ctx context.Context, username string) (domain.LoginResponse, error) {
	a.log.Warn().Str("username", username).Msg("break-glass login used")
	if err := a.userStore.AppendActivity(ctx, domain.ActivityLog{
		ID:        xid.New("act"),
		Actor:     username,
		Action:    "break_glass_login",
		Detail:    "emergency credentials accepted, user store unavailable or empty",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		a.log.Warn().Err(err).Msg("failed to record break-glass login")
	}
	return a.issue("break-glass", username, "Acceso de emergencia", domain.RoleAdmin)
}

func (a *AuthManager) issue(id string, username string, displayName string, role string) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(id, username, displayName, role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Role:        role,
		DisplayName: displayName,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{ID: claims.UID, Username: sub, Name: claims.Name, Role: claims.Role}, nil
}

func (a *AuthManager) sign(id string, username string, displayName string, role string, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "sportlentes",
		},
		Role: role,
		Name: displayName,
		UID:  id,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
