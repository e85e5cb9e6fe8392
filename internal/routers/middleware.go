package routers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const DefaultIdentityHeader = "X-Forwarded-User"

// TrustForwardedUser stores the subject that the authenticating gateway put in the
// identity header under gin.AuthUserKey. Requests without it reach the handlers unauthenticated.
func TrustForwardedUser(logger *zap.SugaredLogger, header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultIdentityHeader
	}
	return func(c *gin.Context) {
		subject := strings.TrimSpace(c.GetHeader(header))
		if subject == "" {
			logger.Debugw("request without identity header", "header", header, "path", c.FullPath())
			c.Next()
			return
		}
		c.Set(gin.AuthUserKey, subject)
		c.Next()
	}
}
