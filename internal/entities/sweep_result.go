package entities

import "time"

// Failure stages recorded in RecordFailure.Stage
const (
	StageVerify = "verify"
	StageDelete = "delete"
)

// Removal records a dangling relation record that was (or in dry-run mode would be) deleted
type Removal struct {
	RecordID  string            `json:"record_id"`
	Endpoints map[string]string `json:"endpoints"` // role name -> endpoint ID as stored
	Missing   []string          `json:"missing"`   // role names whose endpoint does not exist
}

// RecordFailure records a per-record error absorbed by the sweep
type RecordFailure struct {
	RecordID string `json:"record_id"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// SweepResult aggregates the outcome of sweeping one relation type
type SweepResult struct {
	Relation     string          `json:"relation"`
	Collection   string          `json:"collection"`
	Examined     int             `json:"examined"`
	Dangling     int             `json:"dangling"`
	Removed      int             `json:"removed"`
	VerifyErrors int             `json:"verify_errors"`
	DeleteErrors int             `json:"delete_errors"`
	Removals     []Removal       `json:"removals,omitempty"`
	Failures     []RecordFailure `json:"failures,omitempty"`
	Aborted      string          `json:"aborted,omitempty"`
	Cancelled    bool            `json:"cancelled,omitempty"`
	Duration     time.Duration   `json:"duration_ns"`
}

// Errored returns the number of records whose verification or deletion failed
func (r *SweepResult) Errored() int {
	return r.VerifyErrors + r.DeleteErrors
}

// Clean returns the number of examined records whose endpoints both exist
func (r *SweepResult) Clean() int {
	return r.Examined - r.Dangling - r.VerifyErrors
}
