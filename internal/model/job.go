package model

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
	StatusFailed    = "failed"
)

// RenderJob represents an asynchronous render request: a source image URL and
// the encoded operation pipeline to apply to it.
type RenderJob struct {
	ID         uuid.UUID `json:"id"`
	SourceURL  string    `json:"source_url"`
	Spec       string    `json:"spec"`   // encoded ImageSpec token
	Format     string    `json:"format"` // output container: jpeg, png, gif
	Status     string    `json:"status"` // pending / processed / failed
	ResultPath string    `json:"result_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
