package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tokolite/backend/internal/domain"
	"tokolite/backend/internal/xid"
)

// AuthManager issues and verifies the bearer tokens behind every API
// call. Two identity classes exist: the store owner (username/password,
// bcrypt-checked) and demo visitors, who get a throwaway anonymous
// identity with a metered action allowance.
type AuthManager struct {
	secret        []byte
	tokenTTL      time.Duration
	ownerUsername string
	ownerPassword string
	ownerName     string
}

type tokenClaims struct {
	jwtlib.RegisteredClaims
	Name      string `json:"name"`
	Anonymous bool   `json:"anonymous"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, ownerUsername, ownerPassword string) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	ownerUsername = strings.ToLower(strings.TrimSpace(ownerUsername))
	if ownerUsername == "" {
		ownerUsername = "owner"
	}
	if !isPasswordHash(ownerPassword) {
		if hashed, err := hashPassword(ownerPassword); err == nil {
			ownerPassword = hashed
		}
	}

	return &AuthManager{
		secret:        []byte(secret),
		tokenTTL:      tokenTTL,
		ownerUsername: ownerUsername,
		ownerPassword: ownerPassword,
		ownerName:     "Store Owner",
	}
}

// Login authenticates the store owner.
func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username != a.ownerUsername || !verifyPassword(a.ownerPassword, req.Password) {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	identity := domain.Identity{
		UID:       username,
		Name:      a.ownerName,
		Anonymous: false,
	}
	return a.issue(identity)
}

// DemoLogin mints a fresh anonymous identity. No credentials are
// required; the quota guard limits what the identity can do.
func (a *AuthManager) DemoLogin() (domain.LoginResponse, error) {
	identity := domain.Identity{
		UID:       strings.ToLower(xid.New("demo")),
		Name:      "Demo",
		Anonymous: true,
	}
	return a.issue(identity)
}

func (a *AuthManager) issue(identity domain.Identity) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := tokenClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   identity.UID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "tokolite",
		},
		Name:      identity.Name,
		Anonymous: identity.Anonymous,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Name:        identity.Name,
		Anonymous:   identity.Anonymous,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Identity, error) {
	claims := &tokenClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Identity{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Identity{}, errors.New("invalid token subject")
	}
	return domain.Identity{UID: sub, Name: claims.Name, Anonymous: claims.Anonymous}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
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
