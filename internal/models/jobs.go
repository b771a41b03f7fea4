package models

import (
	"time"

	"github.com/google/uuid"
)

type RecomputeReason string

const (
	RecomputeReasonSubmission   RecomputeReason = "submission"
	RecomputeReasonRegistration RecomputeReason = "registration"
	RecomputeReasonCompletion   RecomputeReason = "completion"
	RecomputeReasonStatus       RecomputeReason = "status"
	RecomputeReasonRefresh      RecomputeReason = "refresh"
	RecomputeReasonManual       RecomputeReason = "manual"
)

type RecomputeJob struct {
	JobID     uuid.UUID       `json:"job_id"`
	ContestID uuid.UUID       `json:"contest_id"`
	Reason    RecomputeReason `json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}

type WorkerStatus struct {
	WorkerID      string     `json:"worker_id"`
	Status        string     `json:"status"`
	LastPing      time.Time  `json:"last_ping"`
	JobsProcessed int64      `json:"jobs_processed"`
	CurrentJobID  *uuid.UUID `json:"current_job_id,omitempty"`
}
