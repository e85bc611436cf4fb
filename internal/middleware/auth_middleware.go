package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/pkg/bcrypt"
	jwtPkg "github.com/sefazor/resumeforge-backend/pkg/jwt"
)

const identityKey = "identity"

// AuthMiddleware resolves the bearer token into the caller's identity. The
// store tag comes from the token's src claim and is never re-derived here.
func AuthMiddleware(secret string, logger *zap.Logger) fiber.Handler {
	log := logger.Named("auth")
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Authorization header is required"))
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid authorization header format"))
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := jwtPkg.ValidateToken(secret, tokenString)
		if err != nil {
			log.Debug("token rejected", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Invalid token"))
		}

		SetIdentity(c, models.Identity{
			Key:    claims.Subject,
			Email:  claims.Email,
			Name:   claims.Name,
			Source: models.IdentitySource(claims.Source),
		})
		return c.Next()
	}
}

// CurrentIdentity returns the identity stored by AuthMiddleware.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	id, ok := c.Locals(identityKey).(models.Identity)
	return id, ok
}

// SetIdentity stores id for downstream handlers.
func SetIdentity(c *fiber.Ctx, id models.Identity) {
	c.Locals(identityKey, id)
}

// AdminMiddleware guards campaign administration with HTTP basic auth against
// a bcrypt hash. Without a valid hash configured every request is refused.
func AdminMiddleware(username, passwordHash string) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "admin",
		Authorizer: func(user, pass string) bool {
			if !bcrypt.VerifyHash(passwordHash) || user != username {
				return false
			}
			return bcrypt.ComparePassword(passwordHash, pass) == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `Basic realm="admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("Unauthorized"))
		},
	})
}
