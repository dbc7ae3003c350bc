package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/server/endpoint"
	"github.com/kbukum/whisperserver/server/middleware"
)

// Routes holds what the service routes need.
type Routes struct {
	Receiver endpoint.Receiver
	Runner   endpoint.Runner
	Health   endpoint.HealthChecker
	// UploadLimit caps the transcribe request body in bytes. Zero
	// leaves the cap to the receiver.
	UploadLimit int64
}

// RegisterRoutes registers the health, version and transcribe endpoints,
// each also under /api, and the static frontend when configured.
func (s *Server) RegisterRoutes(r Routes) {
	transcribe := make([]gin.HandlerFunc, 0, 3)
	if s.config.RateLimit.Enabled {
		transcribe = append(transcribe, middleware.GinWrap(middleware.RateLimit(s.config.RateLimit)))
	}
	if r.UploadLimit > 0 {
		transcribe = append(transcribe, middleware.GinWrap(middleware.BodyBytesLimit(r.UploadLimit)))
	}
	transcribe = append(transcribe, endpoint.Transcribe(r.Receiver, r.Runner, s.log))

	for _, prefix := range []string{"", "/api"} {
		s.engine.GET(prefix+"/health", endpoint.Health(r.Health))
		s.engine.GET(prefix+"/ready", endpoint.Readiness(r.Health))
		s.engine.GET(prefix+"/version", endpoint.Version())
		s.engine.POST(prefix+"/transcribe", transcribe...)
	}

	if s.config.StaticDir != "" {
		s.ServeStatic(s.config.StaticDir)
	}
}

// ServeStatic serves dir for GET and HEAD requests no route matched.
func (s *Server) ServeStatic(dir string) {
	files := http.FileServer(http.Dir(dir))
	s.engine.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	})
	s.log.Info("Serving static files", logger.Fields(logger.FieldPath, dir))
}
