package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/ports"
)

const listLimit = 50

// Draft is an in-app notification before it is stored
type Draft struct {
	Category  domain.NotificationCategory
	Title     string
	Message   string
	BookingID string
}

// Service stores in-app notifications and tells connected clients about them
type Service struct {
	repo  ports.NotificationRepository
	users ports.UserRepository
	push  ports.Publisher
	now   func() time.Time
	log   *zap.Logger
}

func NewService(repo ports.NotificationRepository, users ports.UserRepository, push ports.Publisher, log *zap.Logger) *Service {
	return &Service{
		repo:  repo,
		users: users,
		push:  push,
		now:   time.Now,
		log:   log,
	}
}

// Notify stores a notification for one user and pushes a realtime event
func (s *Service) Notify(ctx context.Context, userID string, d Draft) error {
	n := &domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  d.Category,
		Title:     d.Title,
		Message:   d.Message,
		CreatedAt: s.now(),
	}
	if d.BookingID != "" {
		id := d.BookingID
		n.BookingID = &id
	}

	if err := s.repo.Create(ctx, n); err != nil {
		s.log.Error("Failed to store notification",
			zap.String("user_id", userID),
			zap.String("title", d.Title),
			zap.Error(err),
		)
		return err
	}

	s.push.PublishNotificationCreated(ctx, userID)
	return nil
}

// NotifyStaff sends the same notification to every admin and security user.
// It keeps going when one recipient fails and returns the first error.
func (s *Service) NotifyStaff(ctx context.Context, d Draft) error {
	staff, err := s.users.FindByRoles(ctx, domain.UserRoleAdmin, domain.UserRoleSecurity)
	if err != nil {
		s.log.Error("Failed to load staff users", zap.Error(err))
		return err
	}

	var firstErr error
	for _, u := range staff {
		if err := s.Notify(ctx, u.ID, d); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListMine returns the latest notifications of a user
func (s *Service) ListMine(ctx context.Context, userID string) ([]domain.Notification, error) {
	return s.repo.FindByUser(ctx, userID, listLimit)
}

// MarkRead flags one of the user's notifications as read
func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: notification %s", domain.ErrNotFound, id)
	}
	return nil
}
