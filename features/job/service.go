package job

import (
	"context"
	"encoding/json"

	"stocktake/backend/internal/config"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo Repository
	pub  EventPublisher
}

func NewService(repo Repository, pub EventPublisher) *Service {
	return &Service{repo: repo, pub: pub}
}

func (s *Service) List(ctx context.Context) ([]Job, error) {
	return s.repo.List(ctx)
}

// Record dead-letters a failed ingestion run.
func (s *Service) Record(ctx context.Context, resourceID, handler string, payload []byte, jobErr error) error {
	return s.repo.Save(ctx, &Job{
		ResourceID: resourceID,
		Handler:    handler,
		Payload:    json.RawMessage(payload),
		Error:      jobErr.Error(),
	})
}

// Retry republishes the stored queue payload and deletes the record. The
// replayed task goes through the normal lock acquisition, so a retry during
// an active run fails the same way a fresh upload would.
func (s *Service) Retry(ctx context.Context, id string) error {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.pub.Publish(config.TopicIngestTask, job.Payload); err != nil {
		return err
	}

	return s.repo.Delete(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
