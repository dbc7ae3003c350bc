// Package upload accepts multipart audio uploads and turns them into jobs.
package upload

import (
	stderrors "errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/job"
	"github.com/kbukum/whisperserver/logger"
	"github.com/kbukum/whisperserver/storage"
	"github.com/kbukum/whisperserver/util"
)

const (
	// multipartSlack is the allowance for boundaries, part headers and the
	// tag field on top of the audio limit when checking Content-Length.
	multipartSlack = 64 << 10
	maxTagBytes    = 4 << 10
)

// Receiver validates uploads and stores accepted audio in a job workspace.
type Receiver struct {
	maxBytes   int64
	limitLabel string
	allowed    map[string]bool
	fileField  string
	tagField   string
	store      *storage.Manager
	log        *logger.Logger
}

// NewReceiver creates a Receiver. cfg must already have defaults applied.
func NewReceiver(cfg Config, store *storage.Manager, log *logger.Logger) (*Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	maxBytes := util.ParseSize(cfg.MaxSize, -1)
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Receiver{
		maxBytes:   maxBytes,
		limitLabel: util.FormatSize(maxBytes),
		allowed:    allowed,
		fileField:  cfg.FileField,
		tagField:   cfg.TagField,
		store:      store,
		log:        log.WithComponent("upload"),
	}, nil
}

// MaxBytes returns the audio size limit.
func (rc *Receiver) MaxBytes() int64 { return rc.maxBytes }

// Allowed reports whether the declared content type is on the allow-list.
// Parameters such as "; codecs=opus" are ignored.
func (rc *Receiver) Allowed(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return rc.allowed[mt]
}

// Receive reads the multipart body of r. On success the returned job owns
// exactly one file in its workspace. Every returned error is an
// *errors.AppError of the validation family and leaves no file behind.
func (rc *Receiver) Receive(r *http.Request) (*job.Job, error) {
	if r.ContentLength > rc.maxBytes+multipartSlack {
		return nil, errors.TooLarge(rc.limitLabel)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		if stderrors.Is(err, http.ErrNotMultipart) {
			return nil, errors.MissingFile()
		}
		return nil, errors.InvalidInput("malformed multipart body").WithCause(err)
	}

	var (
		j   *job.Job
		tag string
	)
	fail := func(err error) (*job.Job, error) {
		if j != nil {
			if cerr := j.Workspace().Cleanup(); cerr != nil {
				rc.log.Warn("cleanup of rejected upload failed", logger.ErrorFields("cleanup", cerr))
			}
		}
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if isMaxBytes(err) {
				return fail(errors.TooLarge(rc.limitLabel))
			}
			return fail(errors.InvalidInput("malformed multipart body").WithCause(err))
		}

		switch {
		case part.FormName() == rc.tagField:
			tag, err = readTag(part)
			if err != nil {
				return fail(err)
			}
		case part.FormName() == rc.fileField && j == nil:
			j, err = rc.storePart(part)
			if err != nil {
				return fail(err)
			}
		}
		_ = part.Close()
	}

	if j == nil {
		return nil, errors.MissingFile()
	}
	j.RequesterTag = tag

	rc.log.WithJob(j.ID).Info("upload accepted", logger.Fields(
		logger.FieldBytes, j.Size,
		"content_type", j.ContentType,
		"requester", tag,
	))
	return j, nil
}

// storePart writes the audio part to a new job workspace. The declared
// type is checked before any file is created.
func (rc *Receiver) storePart(part *multipart.Part) (*job.Job, error) {
	contentType := part.Header.Get("Content-Type")
	if !rc.Allowed(contentType) {
		rc.log.Info("upload rejected", logger.Fields("content_type", contentType, logger.FieldKind, errors.KindValidation))
		return nil, errors.UnsupportedType(contentType)
	}

	name := part.FileName()
	id := job.NewID(name)
	ws, err := rc.store.Workspace(id)
	if err != nil {
		return nil, errors.Internal(err)
	}
	j := job.New(id, name)
	j.ContentType = contentType
	j.Attach(ws)

	f, err := ws.Create("")
	if err != nil {
		_ = ws.Cleanup()
		return nil, errors.Internal(err)
	}
	j.SetSourcePath(f.Name())

	n, copyErr := io.Copy(f, io.LimitReader(part, rc.maxBytes+1))
	closeErr := f.Close()
	switch {
	case n > rc.maxBytes, isMaxBytes(copyErr):
		_ = ws.Cleanup()
		return nil, errors.TooLarge(rc.limitLabel)
	case copyErr != nil:
		_ = ws.Cleanup()
		return nil, errors.InvalidInput("upload interrupted").WithCause(copyErr)
	case closeErr != nil:
		_ = ws.Cleanup()
		return nil, errors.Internal(closeErr)
	}
	j.Size = n
	return j, nil
}

// isMaxBytes reports whether err comes from an http.MaxBytesReader cap
// placed on the whole body.
func isMaxBytes(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}

func readTag(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxTagBytes+1))
	if err != nil {
		return "", errors.InvalidInput("malformed multipart body").WithCause(err)
	}
	if len(b) > maxTagBytes {
		return "", errors.InvalidInput("username too long")
	}
	return strings.TrimSpace(string(b)), nil
}
