package middleware

import (
	"errors"
	"strings"

	models "Tavern/models/postgres"
	"Tavern/services/apierror"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContextAccount is the gin context key holding the authenticated
// *models.Account.
const ContextAccount = "account"

// IssueToken creates the bearer token handed out on login. It is mainly
// used by clients for the socket handshake, where no cookie jar exists.
func IssueToken(secret string, account uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uuid": account.String(),
	})
	return token.SignedString([]byte(secret))
}

// DecodeToken validates a bearer token and returns the account uuid.
func DecodeToken(secret, tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}
	raw, ok := claims["uuid"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing uuid claim")
	}
	return uuid.Parse(raw)
}

// AuthRequired resolves the caller from the session cookie or, failing
// that, from an Authorization bearer token, and loads the account into the
// context. Requests without a valid identity are rejected with the
// Unauthenticated envelope.
func AuthRequired(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountUUID, ok := callerUUID(c, jwtSecret)
		if !ok {
			apiErr := apierror.Of(apierror.Unauthenticated)
			c.AbortWithStatusJSON(apiErr.HTTPStatus(), apiErr)
			return
		}

		var account models.Account
		if err := db.First(&account, "uuid = ?", accountUUID).Error; err != nil {
			apiErr := apierror.Of(apierror.SessionError)
			c.AbortWithStatusJSON(apiErr.HTTPStatus(), apiErr)
			return
		}

		c.Set(ContextAccount, &account)
		c.Next()
	}
}

func callerUUID(c *gin.Context, jwtSecret string) (uuid.UUID, bool) {
	session := sessions.Default(c)
	if raw, ok := session.Get(SessionKeyAccount).(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true
		}
	}

	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found {
		if id, err := DecodeToken(jwtSecret, token); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
