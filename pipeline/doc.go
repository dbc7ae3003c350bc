// Package pipeline runs one job from upload to terminal event.
//
//	Received -> [Converting] -> Transcribing -> Complete | Failed -> Cleaned
//
// The orchestrator emits the processing event first, turns every later
// error (panics included) into exactly one error event, hands completed
// transcripts to the notifier and always removes the job's temp files.
package pipeline
