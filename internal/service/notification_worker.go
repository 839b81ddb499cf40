package service

import (
	"context"
	"encoding/json"
	"sync"

	"forumhub/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// NotificationWorker consumes notification messages from RabbitMQ and pushes to WebSocket
type NotificationWorker struct {
	rabbitMQ *util.RabbitMQClient
	wsHub    UserBroadcaster
	channel  *amqp.Channel
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewNotificationWorker(rabbitMQ *util.RabbitMQClient, wsHub UserBroadcaster) *NotificationWorker {
	return &NotificationWorker{
		rabbitMQ: rabbitMQ,
		wsHub:    wsHub,
	}
}

// Start declares the queue and consumes it until Stop is called or the
// channel closes.
func (w *NotificationWorker) Start(ctx context.Context) error {
	if w.rabbitMQ == nil {
		return nil
	}
	if err := w.rabbitMQ.DeclareQueue(NotificationExchange, NotificationQueueName, NotificationRoutingKey); err != nil {
		return err
	}
	msgs, ch, err := w.rabbitMQ.Consume(NotificationQueueName, "notification_worker")
	if err != nil {
		return err
	}
	w.channel = ch

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		util.Logger.Info("notification worker started")
		for {
			select {
			case <-ctx.Done():
				util.Logger.Info("notification worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					util.Logger.Warn("notification queue closed")
					return
				}
				if err := w.handle(msg.Body); err != nil {
					util.Logger.Error("drop malformed notification message", zap.Error(err))
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()
	return nil
}

// handle pushes one queued notification to the user's websocket connections.
func (w *NotificationWorker) handle(body []byte) error {
	var msg NotificationMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return err
	}
	if w.wsHub != nil {
		w.wsHub.BroadcastToUser(msg.UserID, msg.payload())
		util.Logger.Debug("notification pushed",
			zap.String("user_id", msg.UserID), zap.String("type", msg.Type))
	}
	return nil
}

// Stop stops consuming and waits for the loop to exit.
func (w *NotificationWorker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
	if w.channel != nil {
		_ = w.channel.Close()
	}
}
