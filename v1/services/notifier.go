package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// NotificationChannel returns the pub/sub channel a user's messages go to
func NotificationChannel(userID string) string {
	return "notifications:" + userID
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// RedisNotifier publishes notifications on a per-user Redis channel
type RedisNotifier struct {
	publisher channelPublisher
}

// NewRedisNotifier creates a notifier over a Redis publisher
func NewRedisNotifier(publisher channelPublisher) *RedisNotifier {
	return &RedisNotifier{publisher: publisher}
}

// Notify publishes n to the user's channel. Having no listener is not an error.
func (n *RedisNotifier) Notify(ctx context.Context, userID string, notification models.Notification) error {
	if userID == "" {
		return nil
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	receivers, err := n.publisher.Publish(ctx, NotificationChannel(userID), payload)
	if err != nil {
		return err
	}
	slog.Debug("Notification published", "userID", userID, "level", notification.Level, "receivers", receivers)
	return nil
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct{}

// Notify logs the notification at a level matching its kind
func (LogNotifier) Notify(ctx context.Context, userID string, n models.Notification) error {
	level := slog.LevelInfo
	if n.Level == models.NotificationError {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "User notification",
		"userID", userID,
		"level", n.Level,
		"title", n.Title,
		"message", n.Message)
	return nil
}
