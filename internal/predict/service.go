// Package predict runs health-risk predictions as queued jobs.
package predict

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/suPer8Hu/healthchat/internal/common"
	"github.com/suPer8Hu/healthchat/internal/gateway"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Predictor is satisfied by *gateway.Gateway.
type Predictor interface {
	PredictRisk(ctx context.Context, m gateway.HealthMetrics) (gateway.RiskAssessment, error)
}

// Publisher hands a job id to the worker queue.
type Publisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

// MissingFieldsError rejects a submission before a job is created.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "predict: missing fields: " + strings.Join(e.Fields, ", ")
}

type Service struct {
	repo      *Repo
	predictor Predictor
	publisher Publisher
	logger    *zap.Logger
}

// NewService wires the job store. publisher may be nil in the worker, and
// predictor may be nil in the API process.
func NewService(repo *Repo, predictor Predictor, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, predictor: predictor, publisher: publisher, logger: logger}
}

// Submit records a queued job and publishes it. A repeated idempotency key
// for the same user returns the first job without publishing again.
func (s *Service) Submit(ctx context.Context, userID string, m gateway.HealthMetrics, idempotencyKey string) (*Job, bool, error) {
	if missing := m.Missing(); len(missing) > 0 {
		return nil, false, &MissingFieldsError{Fields: missing}
	}
	input, err := json.Marshal(m)
	if err != nil {
		return nil, false, err
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, false, err
	}

	job := &Job{
		ID:     id,
		UserID: userID,
		Input:  datatypes.JSON(input),
		Status: JobQueued,
	}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		job.IdempotencyKey = &key
	}

	job, created, err := s.repo.CreateJobOrGetExisting(ctx, job)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return job, false, nil
	}

	if s.publisher == nil {
		return nil, false, fmt.Errorf("predict: no publisher configured")
	}
	if err := s.publisher.PublishJob(ctx, job.ID); err != nil {
		_ = s.repo.MarkJobFailed(ctx, job.ID, "enqueue failed")
		return nil, false, fmt.Errorf("predict: publish %s: %w", job.ID, err)
	}
	return job, true, nil
}

// Get returns the job if it belongs to userID; other users' jobs read as
// gorm.ErrRecordNotFound.
func (s *Service) Get(ctx context.Context, userID, jobID string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return j, nil
}

// Run executes one job. Finished jobs are left alone so a redelivered
// message is harmless. The returned error is the prediction failure, after
// it has been recorded on the job.
func (s *Service) Run(ctx context.Context, jobID string) error {
	if err := s.repo.UpdateJobStatusRunning(ctx, jobID); err != nil {
		return err
	}
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status.Done() {
		s.logger.Info("job already finished", zap.String("job_id", jobID), zap.String("status", string(j.Status)))
		return nil
	}

	var m gateway.HealthMetrics
	if err := json.Unmarshal(j.Input, &m); err != nil {
		_ = s.repo.MarkJobFailed(ctx, jobID, "invalid input: "+err.Error())
		return err
	}

	ra, err := s.predictor.PredictRisk(ctx, m)
	if err != nil {
		if markErr := s.repo.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Error("mark job failed", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return err
	}

	result, err := json.Marshal(ra)
	if err != nil {
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, datatypes.JSON(result))
}
