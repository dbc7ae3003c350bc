// Package job holds the unit of work that flows through the pipeline: one
// upload, the temp paths created for it and the outcome.
package job

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/storage"
	"github.com/kbukum/whisperserver/util"
)

// Status is a job's position in the pipeline.
type Status string

const (
	StatusReceived     Status = "received"
	StatusConverting   Status = "converting"
	StatusTranscribing Status = "transcribing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
	StatusCleaned      Status = "cleaned"
)

// Terminal reports whether s ends the processing part of the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

var transitions = map[Status][]Status{
	StatusReceived:     {StatusConverting, StatusTranscribing, StatusFailed},
	StatusConverting:   {StatusTranscribing, StatusFailed},
	StatusTranscribing: {StatusComplete, StatusFailed},
	StatusComplete:     {StatusCleaned},
	StatusFailed:       {StatusCleaned},
}

func allowed(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Failure records why a job failed.
type Failure struct {
	Kind    errors.Kind
	Code    errors.ErrorCode
	Message string
	Cause   error
}

// Job is one upload-to-transcript unit of work. It is mutated only by the
// goroutine running its pipeline; the mutex guards reads from elsewhere
// (logging, metrics).
type Job struct {
	ID string
	// OriginalName is the filename the client sent.
	OriginalName string
	// ContentType is the declared MIME type of the upload.
	ContentType string
	// Size is the number of bytes stored at SourcePath.
	Size int64
	// RequesterTag is the opaque caller identifier forwarded downstream.
	RequesterTag string
	CreatedAt    time.Time

	workspace *storage.Workspace

	mu             sync.RWMutex
	status         Status
	sourcePath     string
	normalizedPath string
	enginePath     string
	transcript     string
	failure        *Failure
	history        []Status
}

// New creates a job in the Received state.
func New(id, originalName string) *Job {
	return &Job{
		ID:           id,
		OriginalName: originalName,
		CreatedAt:    time.Now(),
		status:       StatusReceived,
		history:      []Status{StatusReceived},
	}
}

// Attach binds the temp workspace that owns every path of this job.
func (j *Job) Attach(ws *storage.Workspace) { j.workspace = ws }

// Workspace returns the attached workspace, nil before Attach.
func (j *Job) Workspace() *storage.Workspace { return j.workspace }

var seq atomic.Uint64

// NewID returns a process-unique job id of the form
// <unix-millis>-<sequence>-<sanitised name>. The sequence keeps ids
// distinct when two uploads share a millisecond and a filename.
func NewID(originalName string) string {
	n := seq.Add(1)
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" +
		strconv.FormatUint(n, 10) + "-" + util.SafeFilename(originalName)
}

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// History returns every status the job has been in, in order.
func (j *Job) History() []Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Status(nil), j.history...)
}

// Transition moves the job to next. Illegal transitions return an error and
// leave the job unchanged.
func (j *Job) Transition(next Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(next)
}

func (j *Job) transitionLocked(next Status) error {
	if !allowed(j.status, next) {
		return fmt.Errorf("job %s: illegal transition %s -> %s", j.ID, j.status, next)
	}
	j.status = next
	j.history = append(j.history, next)
	return nil
}

// Complete records the transcript and moves the job to Complete.
func (j *Job) Complete(transcript string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusComplete); err != nil {
		return err
	}
	j.transcript = transcript
	return nil
}

// Fail records err and moves the job to Failed.
func (j *Job) Fail(err error) error {
	appErr := errors.FromError(err)
	f := &Failure{
		Kind:    errors.KindOfError(err),
		Code:    appErr.Code,
		Message: appErr.Message,
		Cause:   err,
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if transErr := j.transitionLocked(StatusFailed); transErr != nil {
		return transErr
	}
	j.failure = f
	return nil
}

// Transcript returns the transcript, set only when the job is Complete.
func (j *Job) Transcript() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.transcript
}

// Failure returns the failure, set only when the job is Failed.
func (j *Job) Failure() *Failure {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.failure
}

// SourcePath is where the uploaded bytes are stored.
func (j *Job) SourcePath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.sourcePath
}

// SetSourcePath records where the upload was stored.
func (j *Job) SetSourcePath(p string) {
	j.mu.Lock()
	j.sourcePath = p
	j.mu.Unlock()
}

// NormalizedPath is the converted audio, empty when no conversion ran.
func (j *Job) NormalizedPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.normalizedPath
}

// SetNormalizedPath records the converted audio path. It must differ from
// the source path.
func (j *Job) SetNormalizedPath(p string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if p == j.sourcePath {
		return fmt.Errorf("job %s: normalized path equals source path", j.ID)
	}
	j.normalizedPath = p
	return nil
}

// EnginePath is the file the engine wrote its transcript to.
func (j *Job) EnginePath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.enginePath
}

// SetEnginePath records the engine output path.
func (j *Job) SetEnginePath(p string) {
	j.mu.Lock()
	j.enginePath = p
	j.mu.Unlock()
}

// AudioPath returns the file the engine should read: the normalized audio
// when conversion ran, otherwise the upload itself.
func (j *Job) AudioPath() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.normalizedPath != "" {
		return j.normalizedPath
	}
	return j.sourcePath
}
