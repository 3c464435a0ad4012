package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FCMConfig holds Firebase Cloud Messaging configuration
type FCMConfig struct {
	ServerKey string
	ProjectID string
}

// FCMClient sends push notifications via Firebase Cloud Messaging
type FCMClient struct {
	config     FCMConfig
	httpClient *http.Client
}

// NewFCMClient creates a new FCM client
func NewFCMClient(config FCMConfig) *FCMClient {
	return &FCMClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// PushMessage represents a push notification
type PushMessage struct {
	Token string // Device token
	Title string
	Body  string
	Link  string // Deep link opened on tap
	Data  map[string]string
}

// FCMRequest represents the FCM HTTP v1 API request
type FCMRequest struct {
	Message FCMMessage `json:"message"`
}

type FCMMessage struct {
	Token        string            `json:"token"`
	Notification *FCMNotification  `json:"notification,omitempty"`
	Data         map[string]string `json:"data,omitempty"`
	Android      *FCMAndroid       `json:"android,omitempty"`
	Webpush      *FCMWebpush       `json:"webpush,omitempty"`
}

type FCMNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type FCMAndroid struct {
	Priority string `json:"priority,omitempty"` // "high" or "normal"
}

type FCMWebpush struct {
	FCMOptions *FCMOptions `json:"fcm_options,omitempty"`
}

type FCMOptions struct {
	Link string `json:"link,omitempty"`
}

// Send sends a push notification
func (c *FCMClient) Send(ctx context.Context, msg *PushMessage) error {
	request := FCMRequest{
		Message: FCMMessage{
			Token: msg.Token,
			Notification: &FCMNotification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
			Android: &FCMAndroid{
				Priority: "high",
			},
		},
	}

	if msg.Link != "" {
		request.Message.Webpush = &FCMWebpush{
			FCMOptions: &FCMOptions{Link: msg.Link},
		}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal FCM request: %w", err)
	}

	url := fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", c.config.ProjectID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.config.ServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send FCM request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("FCM returned status %d", resp.StatusCode)
	}

	return nil
}
