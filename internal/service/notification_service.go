package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

// NotificationJobType tags queued notification deliveries.
const NotificationJobType = "notification.persist"

type notificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkActionTaken(ctx context.Context, recipientID, relatedID string) error
}

type userDirectory interface {
	ListByRole(ctx context.Context, role models.UserRole, departmentID string) ([]models.User, error)
}

type notificationQueue interface {
	Enqueue(job jobs.Job) error
	Running() bool
}

// Notifier is the fire-and-forget sink used by the scheduling workflows.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
	NotifyRole(ctx context.Context, role models.UserRole, departmentID string, template models.Notification)
	MarkActionTaken(ctx context.Context, recipientID, relatedID string)
}

// NotificationService records in-app notifications. Delivery beyond the database is external.
type NotificationService struct {
	repo    notificationStore
	users   userDirectory
	queue   notificationQueue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service. Attach a queue with UseQueue to persist
// asynchronously; without one records are written inline.
func NewNotificationService(repo notificationStore, users userDirectory, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, users: users, metrics: metrics, logger: logger}
}

// UseQueue routes Notify through the background queue.
func (s *NotificationService) UseQueue(queue notificationQueue) {
	s.queue = queue
}

// Notify persists a notification, through the queue when it is running.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if n.RecipientID == "" {
		s.logger.Warn("notification without recipient dropped", zap.String("title", n.Title))
		return
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if s.queue != nil && s.queue.Running() {
		err := s.queue.Enqueue(jobs.Job{ID: n.ID, Type: NotificationJobType, Payload: n})
		if err == nil {
			return
		}
		s.logger.Warn("notification enqueue failed, writing inline", zap.String("notification_id", n.ID), zap.Error(err))
	}
	if err := s.persist(ctx, n); err != nil {
		s.metrics.RecordNotification("failed")
		s.logger.Warn("notification dispatch failed",
			zap.String("recipient_id", n.RecipientID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
	}
}

// NotifyRole sends a copy of template to every active user holding role in the department.
// An empty department addresses the role across departments.
func (s *NotificationService) NotifyRole(ctx context.Context, role models.UserRole, departmentID string, template models.Notification) {
	if s.users == nil {
		return
	}
	users, err := s.users.ListByRole(ctx, role, departmentID)
	if err != nil {
		s.logger.Warn("failed to resolve notification recipients",
			zap.String("role", string(role)),
			zap.String("department_id", departmentID),
			zap.Error(err),
		)
		return
	}
	for _, user := range users {
		n := template
		n.ID = ""
		n.RecipientID = user.ID
		s.Notify(ctx, n)
	}
}

// MarkActionTaken closes request notifications tied to relatedID for the recipient.
func (s *NotificationService) MarkActionTaken(ctx context.Context, recipientID, relatedID string) {
	if err := s.repo.MarkActionTaken(ctx, recipientID, relatedID); err != nil {
		s.logger.Warn("failed to close request notification",
			zap.String("recipient_id", recipientID),
			zap.String("related_id", relatedID),
			zap.Error(err),
		)
	}
}

// Handle is the queue worker entry point.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(models.Notification)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.persist(ctx, n)
}

// OnDead records notifications dropped after exhausting retries.
func (s *NotificationService) OnDead(job jobs.Job, err error) {
	s.metrics.RecordNotification("failed")
	s.logger.Warn("notification dropped", zap.String("notification_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
}

func (s *NotificationService) persist(ctx context.Context, n models.Notification) error {
	if err := s.repo.Create(ctx, &n); err != nil {
		return err
	}
	s.metrics.RecordNotification("dispatched")
	return nil
}

// List returns the caller's notifications.
func (s *NotificationService) List(ctx context.Context, recipientID string, query dto.NotificationQuery) ([]models.Notification, *models.Pagination, error) {
	if recipientID == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	page, size, limit, offset := pageWindow(query.Page, query.PageSize)
	items, err := s.repo.List(ctx, models.NotificationFilter{
		RecipientID: recipientID,
		UnreadOnly:  query.UnreadOnly,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)}, nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := s.repo.MarkRead(ctx, id, recipientID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return nil
}

func pageWindow(page, size int) (int, int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return page, size, size, (page - 1) * size
}
