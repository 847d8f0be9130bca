package models

import (
	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/ledger"
	"cessation-pipeline/internal/pipeline"
)

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string `json:"status"`
	BlobDriver  string `json:"blob_driver"`
	RunInFlight bool   `json:"run_in_flight"`
}

// RunResponse is returned by POST /runs and GET /runs/latest
type RunResponse struct {
	Manifest *pipeline.Manifest `json:"manifest,omitempty"`
	// LastRecorded is the newest ledger entry, which may be a failed run.
	LastRecorded *ledger.Run `json:"last_recorded,omitempty"`
}

// ArtifactsResponse is returned by /artifacts
type ArtifactsResponse struct {
	Artifacts []artifact.Info `json:"artifacts"`
}

// ErrorResponse carries a failure message
type ErrorResponse struct {
	Error string `json:"error"`
}
