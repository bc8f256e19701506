package services

import (
	"fmt"

	"github.com/yukikurage/kpi-management-api/internal/models"
	"github.com/yukikurage/kpi-management-api/internal/repository"
	"github.com/yukikurage/kpi-management-api/internal/utils"
	"go.uber.org/zap"
)

// ActivityService records the audit feed. Recording is best-effort.
type ActivityService struct {
	repo repository.ActivityRepository
	log  *zap.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(repo repository.ActivityRepository, log *zap.Logger) *ActivityService {
	return &ActivityService{repo: repo, log: log}
}

// ActivityEntry is one feed item before it is stored.
type ActivityEntry struct {
	ActorID      *uint64
	Action       models.ActivityType
	TargetUserID *uint64
	TargetTaskID *uint64
	Details      map[string]interface{}
}

// Log stores entry. Failures are logged and dropped.
func (s *ActivityService) Log(entry ActivityEntry) {
	row := &models.ActivityLog{
		ActorID:      entry.ActorID,
		ActionType:   entry.Action,
		TargetUserID: entry.TargetUserID,
		TargetTaskID: entry.TargetTaskID,
		Details:      entry.Details,
	}
	if err := s.repo.Create(row); err != nil {
		s.log.Warn("failed to record activity",
			zap.String("action", string(entry.Action)),
			zap.Error(err),
		)
	}
}

// ListForUser returns the feed of a user, newest first.
func (s *ActivityService) ListForUser(userID uint64, params utils.PaginationParams) ([]models.ActivityLog, int64, error) {
	entries, total, err := s.repo.ListForUser(userID, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, total, nil
}

func idPtr(id uint64) *uint64 {
	return &id
}
