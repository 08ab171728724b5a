package auth

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
)

// FirebaseAuthClient is the slice of the Firebase Auth SDK the middleware
// needs, kept as an interface so tests can substitute it.
type FirebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseMiddleware struct {
	authClient FirebaseAuthClient
}

func NewFirebaseMiddleware(authClient FirebaseAuthClient) *FirebaseMiddleware {
	return &FirebaseMiddleware{
		authClient: authClient,
	}
}

// Middleware verifies the Bearer ID token and sets firebase_uid (and
// firebase_email when present) on the request context.
func (m *FirebaseMiddleware) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization token"})
			c.Abort()
			return
		}

		decoded, err := m.authClient.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Firebase token"})
			c.Abort()
			return
		}

		c.Set("firebase_uid", decoded.UID)
		if email, ok := decoded.Claims["email"].(string); ok {
			c.Set("firebase_email", email)
		}
		c.Next()
	}
}

// OptionalMiddleware verifies the Bearer ID token when one is sent and lets
// the request through anonymously when the header is absent. A token that is
// present but fails verification is still rejected; silently downgrading a
// bad credential to anonymous would mask client bugs.
func (m *FirebaseMiddleware) OptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		decoded, err := m.authClient.VerifyIDToken(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Firebase token"})
			c.Abort()
			return
		}

		c.Set("firebase_uid", decoded.UID)
		if email, ok := decoded.Claims["email"].(string); ok {
			c.Set("firebase_email", email)
		}
		c.Next()
	}
}

// extractBearerToken pulls the token out of an "Authorization: Bearer x"
// header, returning "" for anything malformed.
func extractBearerToken(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
