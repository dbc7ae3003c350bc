package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperserver/component"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// HealthResponse is the /health body. Components are listed only when
// something is not healthy.
type HealthResponse struct {
	Status     string             `json:"status"`
	Components []component.Health `json:"components,omitempty"`
}

// Health answers {"status":"ok"} while every component is healthy. A
// degraded component is reported with 200, an unhealthy one with 503.
func Health(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
			return
		}
		components := checker(c.Request.Context())
		switch component.Overall(components) {
		case component.StatusUnhealthy:
			c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: string(component.StatusUnhealthy), Components: components})
		case component.StatusDegraded:
			c.JSON(http.StatusOK, HealthResponse{Status: string(component.StatusDegraded), Components: components})
		default:
			c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
		}
	}
}
