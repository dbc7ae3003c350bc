package upload

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/kbukum/whisperserver/errors"
	"github.com/kbukum/whisperserver/storage"
)

type field struct {
	name, filename, contentType, body string
}

func multipartRequest(t *testing.T, fields ...field) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range fields {
		h := textproto.MIMEHeader{}
		if f.filename != "" {
			h.Set("Content-Disposition", `form-data; name="`+f.name+`"; filename="`+f.filename+`"`)
		} else {
			h.Set("Content-Disposition", `form-data; name="`+f.name+`"`)
		}
		if f.contentType != "" {
			h.Set("Content-Type", f.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = w.Write([]byte(f.body))
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newReceiver(t *testing.T, maxSize string) (*Receiver, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewManager(storage.Config{Dir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := Config{MaxSize: maxSize}
	cfg.ApplyDefaults()
	rc, err := NewReceiver(cfg, store, nil)
	if err != nil {
		t.Fatal(err)
	}
	return rc, dir
}

func fileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func expectCode(t *testing.T, err error, code errors.ErrorCode, status int) {
	t.Helper()
	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != code || appErr.HTTPStatus != status {
		t.Fatalf("got %s/%d, want %s/%d", appErr.Code, appErr.HTTPStatus, code, status)
	}
	if errors.KindOfError(err) != errors.KindValidation {
		t.Errorf("kind = %s", errors.KindOfError(err))
	}
}

func TestReceive_Accepts(t *testing.T) {
	rc, dir := newReceiver(t, "1MB")
	req := multipartRequest(t,
		field{name: "audio", filename: "meeting.webm", contentType: "audio/webm;codecs=opus", body: "RIFFdata"},
		field{name: "username", body: " alice "},
	)

	j, err := rc.Receive(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.RequesterTag != "alice" || j.OriginalName != "meeting.webm" || j.Size != 8 {
		t.Errorf("unexpected job %+v", j)
	}
	if !strings.HasSuffix(j.SourcePath(), "-meeting.webm") {
		t.Errorf("source path %q not namespaced by job id", j.SourcePath())
	}
	data, err := os.ReadFile(j.SourcePath())
	if err != nil || string(data) != "RIFFdata" {
		t.Fatalf("stored %q, %v", data, err)
	}
	if fileCount(t, dir) != 1 {
		t.Errorf("expected exactly one file")
	}
	if err := j.Workspace().Cleanup(); err != nil {
		t.Fatal(err)
	}
	if fileCount(t, dir) != 0 {
		t.Errorf("cleanup left files behind")
	}
}

func TestReceive_TagBeforeAudio(t *testing.T) {
	rc, _ := newReceiver(t, "1MB")
	req := multipartRequest(t,
		field{name: "username", body: "bob"},
		field{name: "audio", filename: "a.wav", contentType: "audio/wav", body: "x"},
	)
	j, err := rc.Receive(req)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Workspace().Cleanup()
	if j.RequesterTag != "bob" {
		t.Errorf("tag = %q", j.RequesterTag)
	}
}

func TestReceive_UnsupportedType(t *testing.T) {
	for _, ct := range []string{"text/plain", "application/octet-stream", "", "image/png"} {
		t.Run(ct, func(t *testing.T) {
			rc, dir := newReceiver(t, "1MB")
			req := multipartRequest(t, field{name: "audio", filename: "notes.txt", contentType: ct, body: "hello"})
			_, err := rc.Receive(req)
			expectCode(t, err, errors.ErrCodeUnsupportedType, http.StatusBadRequest)
			if err.(*errors.AppError).Message != "Invalid file type. Only audio files are allowed." {
				t.Errorf("message = %q", err.(*errors.AppError).Message)
			}
			if fileCount(t, dir) != 0 {
				t.Error("rejected upload left a file")
			}
		})
	}
}

func TestReceive_TooLargeWhileStreaming(t *testing.T) {
	rc, dir := newReceiver(t, "1KB")
	req := multipartRequest(t, field{name: "audio", filename: "big.wav", contentType: "audio/wav", body: strings.Repeat("a", 1025)})
	req.ContentLength = -1

	_, err := rc.Receive(req)
	expectCode(t, err, errors.ErrCodeTooLarge, http.StatusRequestEntityTooLarge)
	if msg := err.(*errors.AppError).Message; msg != "File too large. Maximum file size is 1KB." {
		t.Errorf("message = %q", msg)
	}
	if fileCount(t, dir) != 0 {
		t.Error("oversized upload left a file")
	}
}

func TestReceive_BodyCapped(t *testing.T) {
	rc, dir := newReceiver(t, "1MB")
	req := multipartRequest(t, field{name: "audio", filename: "big.wav", contentType: "audio/wav", body: strings.Repeat("a", 4096)})
	req.ContentLength = -1
	req.Body = http.MaxBytesReader(httptest.NewRecorder(), req.Body, 1024)

	_, err := rc.Receive(req)
	expectCode(t, err, errors.ErrCodeTooLarge, http.StatusRequestEntityTooLarge)
	if fileCount(t, dir) != 0 {
		t.Error("capped upload left a file")
	}
}

func TestReceive_ExactlyAtLimit(t *testing.T) {
	rc, _ := newReceiver(t, "1KB")
	req := multipartRequest(t, field{name: "audio", filename: "ok.wav", contentType: "audio/wav", body: strings.Repeat("a", 1024)})
	j, err := rc.Receive(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = j.Workspace().Cleanup()
}

func TestReceive_TooLargeDeclared(t *testing.T) {
	rc, dir := newReceiver(t, "1KB")
	req := multipartRequest(t, field{name: "audio", filename: "a.wav", contentType: "audio/wav", body: "x"})
	req.ContentLength = rc.MaxBytes() + multipartSlack + 1

	_, err := rc.Receive(req)
	expectCode(t, err, errors.ErrCodeTooLarge, http.StatusRequestEntityTooLarge)
	if fileCount(t, dir) != 0 {
		t.Error("rejected upload left a file")
	}
}

func TestReceive_DefaultLimitMessage(t *testing.T) {
	rc, _ := newReceiver(t, "")
	if rc.MaxBytes() != 1<<30 {
		t.Fatalf("default limit = %d", rc.MaxBytes())
	}
	req := multipartRequest(t, field{name: "audio", filename: "a.wav", contentType: "audio/wav", body: "x"})
	req.ContentLength = 2 << 30
	_, err := rc.Receive(req)
	if msg := err.(*errors.AppError).Message; msg != "File too large. Maximum file size is 1GB." {
		t.Errorf("message = %q", msg)
	}
}

func TestReceive_Missing(t *testing.T) {
	rc, _ := newReceiver(t, "1MB")

	onlyTag := multipartRequest(t, field{name: "username", body: "alice"})
	_, err := rc.Receive(onlyTag)
	expectCode(t, err, errors.ErrCodeMissingFile, http.StatusBadRequest)
	if err.(*errors.AppError).Message != "No audio file provided" {
		t.Errorf("message = %q", err.(*errors.AppError).Message)
	}

	notMultipart := httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader("{}"))
	notMultipart.Header.Set("Content-Type", "application/json")
	_, err = rc.Receive(notMultipart)
	expectCode(t, err, errors.ErrCodeMissingFile, http.StatusBadRequest)
}

func TestReceive_ConcurrentSameName(t *testing.T) {
	rc, dir := newReceiver(t, "1MB")
	const n = 8
	results := make(chan string, n)
	reqs := make([]*http.Request, n)
	for i := range reqs {
		reqs[i] = multipartRequest(t, field{name: "audio", filename: "same.wav", contentType: "audio/wav", body: "x"})
	}
	for _, req := range reqs {
		go func() {
			j, err := rc.Receive(req)
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- j.SourcePath()
		}()
	}
	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		p := <-results
		if strings.HasPrefix(p, "error: ") {
			t.Fatal(p)
		}
		seen[p] = true
	}
	if len(seen) != n || fileCount(t, dir) != n {
		t.Errorf("expected %d distinct files, got %d paths", n, len(seen))
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{MaxSize: "lots", FileField: "audio", TagField: "username"},
		{MaxSize: "1GB", AllowedTypes: []string{"wav"}, FileField: "audio", TagField: "username"},
		{MaxSize: "1GB", FileField: "x", TagField: "x"},
	}
	for i, c := range bad {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
