package service

import (
	"context"
	"encoding/json"

	"forumhub/internal/util"

	"go.uber.org/zap"
)

const (
	EmailQueueName  = "email_queue"
	EmailExchange   = "email_exchange"
	EmailRoutingKey = "email"

	EmailTypeVerify = "verify_email"
	EmailTypeReset  = "reset_password"
)

// EmailJob is consumed by the external mail delivery worker.
type EmailJob struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Link    string `json:"link"`
}

type EmailSender interface {
	Send(ctx context.Context, job EmailJob) error
}

type queueEmailSender struct {
	publisher Publisher
}

// NewEmailSender queues jobs on RabbitMQ. With a nil publisher jobs are only logged.
func NewEmailSender(publisher Publisher) EmailSender {
	return &queueEmailSender{publisher: publisher}
}

func (s *queueEmailSender) Send(ctx context.Context, job EmailJob) error {
	if s.publisher == nil {
		util.Logger.Info("email queue unavailable, job dropped",
			zap.String("type", job.Type), zap.String("to", job.To))
		return nil
	}
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, EmailExchange, EmailRoutingKey, body)
}
