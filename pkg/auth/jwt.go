package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devsocial/pkg/models"
	"devsocial/pkg/repository"
	"devsocial/pkg/services"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier turns a bearer token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// JWTVerifier accepts HS256 tokens carrying user_id, username and role
// claims. When an account repository is set the identity is refreshed from
// the stored account, so deleted accounts stop authenticating.
type JWTVerifier struct {
	secret   []byte
	accounts repository.AccountRepository
}

func NewJWTVerifier(secret string, accounts repository.AccountRepository) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), accounts: accounts}
}

func (v *JWTVerifier) Verify(ctx context.Context, tokenStr string) (models.Identity, error) {
	if tokenStr == "" {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "token not provided"}
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "invalid token"}
	}

	id, _ := claims["user_id"].(float64)
	if id <= 0 {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "token has no user"}
	}
	handle, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = string(models.RoleUser)
	}

	identity := models.Identity{ID: int64(id), Handle: handle, Role: models.Role(role)}
	if v.accounts == nil {
		return identity, nil
	}

	account, err := v.accounts.FindByID(ctx, identity.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Identity{}, &services.Error{Kind: services.KindAuthenticationFailed, Message: "account not found"}
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("load account %d: %w", identity.ID, err)
	}
	return account.Identity(), nil
}

// Sign issues a token the verifier accepts. Used by tooling and tests; the
// production issuer lives outside this service.
func Sign(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  identity.ID,
		"username": identity.Handle,
		"role":     string(identity.Role),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
