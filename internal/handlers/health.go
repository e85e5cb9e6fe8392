package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Ready checks if the service is ready to accept requests
// @Summary      Checks if the service is ready to accept requests
// @Id           Ready
// @Tags         Private
// @Produce      json
// @Success      200
// @Failure      503
// @Router       /private/ready [get]
func (api *API) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	for name, check := range api.readiness {
		if err := check(ctx); err != nil {
			api.Logger(ctx).Warnw("readiness check failed", "check", name, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "DOWN",
				"check":  name,
			})
			return
		}
	}
	api.Live(c)
}

// Live checks if the service is live
// @Summary      Checks if the service is live
// @Id           Live
// @Tags         Private
// @Produce      json
// @Success      200
// @Router       /private/live [get]
func (api *API) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
	})
}
