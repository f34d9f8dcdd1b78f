package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderToken is the credential header the mobile client sends.
const HeaderToken = "auth-token"

const identityKey = "identity"

// RequireUser validates the caller's credential, taken from the auth-token
// header or an Authorization bearer, and stores the Identity on the context.
func RequireUser(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := credential(c.Request)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing credential"})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid credential"})
			return
		}
		c.Set(identityKey, Identity{UserID: claims.Subject, Token: tokenStr})
		c.Next()
	}
}

// FromContext returns the identity set by RequireUser.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func credential(r *http.Request) string {
	if tok := strings.TrimSpace(r.Header.Get(HeaderToken)); tok != "" {
		return tok
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > len("bearer ") && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
