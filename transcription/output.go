package transcription

import (
	"fmt"
	"os"
	"strings"

	"github.com/kbukum/whisperserver/errors"
)

// ReadOutput reads the transcript written for req. A missing or unreadable
// file is an engine failure; an empty one yields "".
func ReadOutput(req Request) (string, error) {
	p := req.OutputPath()
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.EngineFailed("Transcription produced no output", err)
		}
		return "", errors.EngineFailed("Transcription output could not be read", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteOutput stores text as the transcript for req. Backends that receive
// the transcript in memory use it so cleanup stays uniform.
func WriteOutput(req Request, text string) error {
	if req.OutputBase == "" {
		return fmt.Errorf("transcription: empty output base")
	}
	if err := os.WriteFile(req.OutputPath(), []byte(text), 0o600); err != nil {
		return errors.EngineFailed("Transcription output could not be written", err)
	}
	return nil
}
