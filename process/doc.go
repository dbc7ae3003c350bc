// Package process runs external tools (ffmpeg, whisper-cli) as blocking
// subprocesses.
//
// Each process is started in its own process group. When the context is
// canceled the whole group receives SIGTERM, and SIGKILL follows after the
// grace period, so a client disconnect never leaves a converter or engine
// running.
package process
