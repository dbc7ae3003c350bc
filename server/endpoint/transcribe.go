package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/job"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/pipeline"
	"github.com/kbukum/whisperserver/sse"
)

// Receiver turns a request into a job. *upload.Receiver implements it.
type Receiver interface {
	Receive(r *http.Request) (*job.Job, error)
}

// Runner processes a job and reports on em. *pipeline.Orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, j *job.Job, em pipeline.Emitter) error
}

// Transcribe accepts a multipart upload and streams the job's progress as
// server-sent events. Rejections before the stream opens are JSON
// {"error": "..."} with a 4xx status.
func Transcribe(rc Receiver, runner Runner, log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("transcribe")
	return func(c *gin.Context) {
		j, err := rc.Receive(c.Request)
		if err != nil {
			respondError(c, err)
			return
		}

		stream, err := sse.NewStream(c.Writer, c.Request, log)
		if err != nil {
			if ws := j.Workspace(); ws != nil {
				_ = ws.Cleanup()
			}
			respondError(c, apperrors.Internal(err))
			return
		}
		_ = runner.Run(c.Request.Context(), j, stream)
	}
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}
