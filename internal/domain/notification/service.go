package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/stacksave/stacksave-api/internal/pkg/push"
)

// Pusher sends a push message to a single device
type Pusher interface {
	Send(ctx context.Context, msg *push.PushMessage) error
}

// Service handles notification business logic. Delivery is best-effort:
// a failed push or a failed insert never fails the caller's operation.
type Service struct {
	repo   Repository
	tokens DeviceTokenRepository
	pusher Pusher
}

// NewService creates notification service. pusher may be nil when push
// delivery is not configured.
func NewService(repo Repository, tokens DeviceTokenRepository, pusher Pusher) *Service {
	return &Service{repo: repo, tokens: tokens, pusher: pusher}
}

// Notify persists a notification and fans it out to the user's active
// devices. Errors are logged and swallowed.
func (s *Service) Notify(ctx context.Context, userID uuid.UUID, typ Type, title, body, link string) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	if link != "" {
		n.Link = sql.NullString{String: link, Valid: true}
	}

	if err := s.repo.Create(ctx, n); err != nil {
		log.Error().Err(err).
			Str("user_id", userID.String()).
			Str("type", string(typ)).
			Msg("Failed to persist notification")
	}

	s.pushToDevices(ctx, userID, typ, title, body, link)
}

func (s *Service) pushToDevices(ctx context.Context, userID uuid.UUID, typ Type, title, body, link string) {
	if s.pusher == nil {
		return
	}

	tokens, err := s.tokens.ListActiveByUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to list device tokens")
		return
	}

	for _, t := range tokens {
		msg := &push.PushMessage{
			Token: t.Token,
			Title: title,
			Body:  body,
			Link:  link,
			Data:  map[string]string{"type": string(typ)},
		}
		if err := s.pusher.Send(ctx, msg); err != nil {
			log.Warn().Err(err).
				Str("user_id", userID.String()).
				Str("platform", t.Platform).
				Msg("Failed to send push, deactivating token")
			if derr := s.tokens.Deactivate(ctx, t.Token); derr != nil {
				log.Error().Err(derr).Msg("Failed to deactivate device token")
			}
		}
	}
}

// List returns the user's notifications, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// CountUnread returns the user's unread notification count
func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead marks a single notification as read
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead marks all of the user's notifications as read
func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, userID)
}

// RegisterDevice registers or reactivates a device token for the user
func (s *Service) RegisterDevice(ctx context.Context, userID uuid.UUID, token, platform string) error {
	return s.tokens.Upsert(ctx, &DeviceToken{
		ID:       uuid.New(),
		UserID:   userID,
		Token:    token,
		Platform: platform,
	})
}
