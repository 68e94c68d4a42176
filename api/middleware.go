package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type contextkey string

const authContextKey contextkey = "auth_payload"

// AuthMiddleware requires a "Bearer <token>" authorization header and stores
// the verified payload on the request context.
func (s *Server) AuthMiddleware(c *gin.Context) {
	header := c.Request.Header.Get("authorization")

	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	fields := strings.Fields(header)

	if len(fields) < 2 || !strings.EqualFold(fields[0], "bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	payload, err := s.tokenMaker.VerifyToken(fields[1])

	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse(err.Error()))
		return
	}

	c.Set(string(authContextKey), payload)

	c.Next()
}
