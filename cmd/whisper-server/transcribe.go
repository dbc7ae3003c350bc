package main

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/whisperserver/httpclient"
	"github.com/kbukum/whisperserver/sse"
	"github.com/kbukum/whisperserver/version"
)

// audioTypes covers extensions mime.TypeByExtension may not know.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/x-m4a",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

func transcribeCmd() *cobra.Command {
	var (
		server   string
		username string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Upload a file to a running server and print its events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			text, err := transcribeFile(ctx, server, args[0], username, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&server, "server", "s", "http://localhost:8000", "server base URL")
	cmd.Flags().StringVarP(&username, "username", "u", "", "requester tag forwarded downstream")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	return cmd
}

// transcribeFile uploads path and returns the transcript. Each event is
// written to progress as it arrives.
func transcribeFile(ctx context.Context, server, path, username string, progress io.Writer) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	client, err := httpclient.New(httpclient.Config{
		BaseURL: server,
		Headers: map[string]string{"User-Agent": version.UserAgent()},
	})
	if err != nil {
		return "", err
	}

	body := &httpclient.MultipartBody{
		Files: []httpclient.FileField{{
			FieldName:   "audio",
			FileName:    filepath.Base(path),
			ContentType: contentTypeOf(path),
			Reader:      f,
		}},
	}
	if username != "" {
		body.Fields = map[string]string{"username": username}
	}

	resp, err := client.DoStream(ctx, httpclient.Request{Method: "POST", Path: "/transcribe", Body: body})
	if err != nil {
		return "", err
	}
	defer resp.Close()
	if resp.SSE == nil {
		return "", fmt.Errorf("server answered %s, not an event stream", resp.Headers["Content-Type"])
	}

	final, err := sse.ReadJob(resp.SSE, func(p *sse.Payload) {
		if p.Status != sse.StatusComplete {
			fmt.Fprintf(progress, "%s: %s\n", p.Status, p.Message)
		}
	})
	if err != nil {
		return "", err
	}
	if final.Status == sse.StatusError {
		return "", fmt.Errorf("transcription failed: %s", final.Message)
	}
	return final.Text(), nil
}

func contentTypeOf(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := audioTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
