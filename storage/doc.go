// Package storage manages the temporary files of transcription jobs.
//
// Every job gets a Workspace. All paths a job uses (the upload, the
// converted audio, the engine output) are allocated through it, named
// after the job id, and removed together by Cleanup:
//
//	ws, err := mgr.Workspace(job.ID)
//	defer ws.Cleanup()
//	src := ws.Path("")           // <dir>/<job-id>
//	pcm := ws.Path(".16k.wav")   // <dir>/<job-id>.16k.wav
//
// A job id can hold at most one live workspace, so two jobs never share a
// path.
package storage
