package predict

import (
	"encoding/json"
	"time"

	"github.com/suPer8Hu/healthchat/internal/gateway"
	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Done reports whether the job reached a final state.
func (s JobStatus) Done() bool {
	return s == JobSucceeded || s == JobFailed
}

type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID string `gorm:"type:varchar(128);not null;index:uniq_predict_job_idempo,unique,priority:1"`

	// Input is the HealthMetrics as received.
	Input datatypes.JSON `gorm:"not null"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_predict_job_idempo,unique,priority:2"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	Result datatypes.JSON

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "predict_jobs" }

// JobView is the API shape of a job.
type JobView struct {
	JobID     string                  `json:"job_id"`
	Status    JobStatus               `json:"status"`
	Result    *gateway.RiskAssessment `json:"result,omitempty"`
	Error     string                  `json:"error,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (j *Job) View() JobView {
	v := JobView{
		JobID:     j.ID,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if j.Status == JobSucceeded && len(j.Result) > 0 {
		var ra gateway.RiskAssessment
		if err := json.Unmarshal(j.Result, &ra); err == nil {
			v.Result = &ra
		}
	}
	if j.Error != nil {
		v.Error = *j.Error
	}
	return v
}
