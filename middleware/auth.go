package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	apperrors "github.com/yashrajoria/storefront/common/errors"
	"github.com/yashrajoria/storefront/models"
	"github.com/yashrajoria/storefront/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	UserContextKey    = "userID"
	ClerkIDContextKey = "clerkID"
	RoleContextKey    = "role"
	userObjectKey     = "user"
)

// Authenticator verifies Clerk session tokens and maps them onto local users.
type Authenticator struct {
	key    *rsa.PublicKey
	issuer string
	users  services.UserService
	logger *zap.Logger
}

// NewAuthenticator parses the Clerk PEM public key. Escaped newlines, as
// they usually arrive through env files, are accepted. An empty issuer
// disables the issuer check.
func NewAuthenticator(pemKey, issuer string, users services.UserService, logger *zap.Logger) (*Authenticator, error) {
	pemKey = strings.ReplaceAll(strings.TrimSpace(pemKey), `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("invalid Clerk public key: %w", err)
	}
	return &Authenticator{key: key, issuer: issuer, users: users, logger: logger}, nil
}

// Verify checks the signature, expiry and issuer of a session token and
// returns the identity it carries.
func (a *Authenticator) Verify(tokenStr string) (services.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.key, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || token == nil || !token.Valid {
		return services.Identity{}, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return services.Identity{}, errors.New("invalid token claims")
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return services.Identity{}, errors.New("unexpected token issuer")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return services.Identity{}, errors.New("token has no subject")
	}

	id := services.Identity{ClerkID: sub}
	id.Email, _ = claims["email"].(string)
	id.Name, _ = claims["name"].(string)
	id.AvatarURL, _ = claims["image_url"].(string)
	id.Role = roleClaim(claims)
	return id, nil
}

// roleClaim reads the role from a top-level claim or from the public
// metadata Clerk can embed into session tokens.
func roleClaim(claims jwt.MapClaims) string {
	if role, ok := claims["role"].(string); ok {
		return role
	}
	for _, key := range []string{"metadata", "public_metadata"} {
		if md, ok := claims[key].(map[string]interface{}); ok {
			if role, ok := md["role"].(string); ok {
				return role
			}
		}
	}
	return ""
}

// RequireAuth rejects requests without a valid bearer token and loads the
// caller, creating the local user on first sight.
func (a *Authenticator) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			apperrors.Abort(c, apperrors.ErrMissingToken)
			return
		}
		tokenStr, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenStr) == "" {
			apperrors.Abort(c, apperrors.ErrInvalidToken)
			return
		}

		identity, err := a.Verify(strings.TrimSpace(tokenStr))
		if err != nil {
			a.logger.Debug("Token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
			apperrors.Abort(c, apperrors.ErrInvalidToken)
			return
		}

		user, err := a.users.EnsureUser(c.Request.Context(), identity)
		if err != nil {
			a.logger.Error("Failed to load user for token", zap.String("clerk_id", identity.ClerkID), zap.Error(err))
			apperrors.Abort(c, apperrors.ErrInternalServer)
			return
		}

		c.Set(UserContextKey, user.ID)
		c.Set(ClerkIDContextKey, user.ClerkID)
		c.Set(RoleContextKey, user.Role)
		c.Set(userObjectKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			apperrors.Abort(c, apperrors.ErrAdminOnly)
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (primitive.ObjectID, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(primitive.ObjectID); ok && !id.IsZero() {
			return id, nil
		}
	}
	return primitive.NilObjectID, errors.New("user ID not found in context")
}

func GetUser(c *gin.Context) (*models.User, error) {
	if val, ok := c.Get(userObjectKey); ok {
		if u, ok := val.(*models.User); ok && u != nil {
			return u, nil
		}
	}
	return nil, errors.New("user not found in context")
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleContextKey) == models.RoleAdmin
}
