// Package engine is the client for the external generative-audio service.
// The engine is an opaque collaborator: jobs are submitted, polled, and
// their produced media downloaded from engine-provided URLs.
package engine

import "context"

// Status values reported by the engine for a job.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// GenerateRequest is the payload submitted to the engine.
type GenerateRequest struct {
	Prompt     string `json:"prompt"`
	BPM        int    `json:"bpm"`
	Duration   int    `json:"duration"`
	Structure  string `json:"structure"`
	Seed       string `json:"seed,omitempty"`
	Stems      bool   `json:"stems"`
	Variations int    `json:"variations"`
}

// Take is one produced output within a job.
type Take struct {
	AudioURL string   `json:"wavUrl"`
	StemURLs []string `json:"stemsUrls,omitempty"`
}

// JobInfo is the engine's view of a job.
type JobInfo struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Takes  []Take `json:"assets,omitempty"`
}

// Client submits and polls generation jobs.
type Client interface {
	CreateJob(ctx context.Context, req GenerateRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (JobInfo, error)
}
