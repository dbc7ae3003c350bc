// Package version reports build information set at link time:
//
//	go build -ldflags "-X github.com/kbukum/whisperserver/version.Version=1.2.0 \
//	    -X github.com/kbukum/whisperserver/version.GitCommit=$(git rev-parse --short HEAD)" \
//	    ./cmd/whisper-server
//
// Values not set by ldflags fall back to the VCS stamp embedded by the Go
// toolchain.
package version
