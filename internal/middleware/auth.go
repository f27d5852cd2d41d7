package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jengzang/regrowth-dataset/pkg/response"
)

// UserKey is the context key holding the authenticated subject
const UserKey = "user"

// Auth validates an HS256 bearer token signed with secret and stores its
// subject under UserKey. An empty secret disables the check.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Error(c, http.StatusUnauthorized, "Missing bearer token")
			c.Abort()
			return
		}

		sub, err := parseSubject(token, key)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "Invalid token: "+err.Error())
			c.Abort()
			return
		}
		c.Set(UserKey, sub)
		c.Next()
	}
}

func parseSubject(token string, key []byte) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
