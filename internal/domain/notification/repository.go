package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines notification data access
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
}

// DeviceTokenRepository defines device token data access
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *DeviceToken) error
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*DeviceToken, error)
	Deactivate(ctx context.Context, token string) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates notification repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, body, link, is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Type), n.Title, n.Body, n.Link, n.IsRead, n.CreatedAt,
	)
	return err
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	var ns []*Notification
	err := r.db.SelectContext(ctx, &ns, `
		SELECT * FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return ns, err
}

func (r *repository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false
	`, userID)
	return count, err
}

func (r *repository) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true, read_at = $3
		WHERE id = $1 AND user_id = $2
	`, id, userID, time.Now())
	return err
}

func (r *repository) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = true, read_at = $2
		WHERE user_id = $1 AND is_read = false
	`, userID, time.Now())
	return err
}

type deviceTokenRepository struct {
	db *sqlx.DB
}

// NewDeviceTokenRepository creates device token repository
func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

func (r *deviceTokenRepository) Upsert(ctx context.Context, token *DeviceToken) error {
	query := `
		INSERT INTO device_tokens (id, user_id, token, platform, is_active)
		VALUES ($1,$2,$3,$4,true)
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			is_active = true
	`
	_, err := r.db.ExecContext(ctx, query, token.ID, token.UserID, token.Token, token.Platform)
	return err
}

func (r *deviceTokenRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]*DeviceToken, error) {
	var tokens []*DeviceToken
	err := r.db.SelectContext(ctx, &tokens, `
		SELECT * FROM device_tokens WHERE user_id = $1 AND is_active = true
	`, userID)
	return tokens, err
}

func (r *deviceTokenRepository) Deactivate(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE device_tokens SET is_active = false WHERE token = $1`, token)
	return err
}
