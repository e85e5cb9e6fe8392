package routers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/receivr-io/receivr/internal/models"
)

// Limiter bounds how many calls of Do run at the same time.
type Limiter struct {
	limit chan struct{}
}

func NewLimiter(maxConcurrency int) Limiter {
	return Limiter{
		limit: make(chan struct{}, maxConcurrency),
	}
}

func (c *Limiter) Do(ctx context.Context, f func()) (canceled bool) {
	select {
	case c.limit <- struct{}{}:
		defer func() {
			<-c.limit
		}()
		f()
		canceled = false
	case <-ctx.Done():
		canceled = true
	}
	return
}

// LimitConcurrency queues requests beyond the limiter's capacity until a slot frees up
// or the client gives up.
func LimitConcurrency(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		canceled := limiter.Do(c.Request.Context(), c.Next)
		if canceled {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.BaseError{
				Error: "too many registrations in progress",
			})
		}
	}
}
