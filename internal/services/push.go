package services

import (
	"context"

	"firebase.google.com/go/v4/messaging"
	"github.com/arnold/achievements-api/internal/models"
	"go.uber.org/zap"
)

// PushService sends completion notices via Firebase Cloud Messaging.
// A service without a client does nothing.
type PushService struct {
	client *messaging.Client
	log    *zap.Logger
}

func NewPushService(client *messaging.Client, log *zap.Logger) *PushService {
	if client == nil {
		log.Info("FCM: no client configured, push notifications disabled")
	} else {
		log.Info("FCM: push notifications enabled")
	}
	return &PushService{client: client, log: log}
}

// Topic is the FCM topic devices subscribe to for one day.
func Topic(day models.Day) string {
	return "achievements-" + string(day)
}

func (p *PushService) Enabled() bool {
	return p != nil && p.client != nil
}

// NotifyCompleted announces a completed achievement to the day's topic.
func (p *PushService) NotifyCompleted(ctx context.Context, day models.Day, a models.Achievement) {
	if !p.Enabled() {
		return
	}

	msg := &messaging.Message{
		Topic: Topic(day),
		Notification: &messaging.Notification{
			Title: "Achievement unlocked",
			Body:  a.Title,
		},
		Data: map[string]string{
			"day": string(day),
			"id":  a.ID,
		},
	}
	if a.Proof != nil {
		msg.Notification.ImageURL = *a.Proof
	}

	if _, err := p.client.Send(ctx, msg); err != nil {
		p.log.Warn("FCM: send failed", zap.String("topic", msg.Topic), zap.Error(err))
	}
}
