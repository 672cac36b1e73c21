package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/events"
	"github.com/yishak-cs/restaurant_orders/pkg/helper"
)

func main() {
	config, err := helper.LoadConfig()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	logger := helper.NewLogger(config.LogLevel, config.LogFormat)
	if config.AMQPURL == "" {
		logger.Fatal("AMQP_URL is required")
	}

	consumer, err := events.NewConsumer(config.AMQPURL, config.AMQPExchange, config.NotifyQueue, []string{
		events.KeyOrderCreated,
		events.KeyOrderStatusChanged,
		events.KeyPasswordResetMail,
	})
	if err != nil {
		logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := &notifier{mailer: auth.LogMailer{Logger: logger}, logger: logger}
	logger.WithField("queue", config.NotifyQueue).Info("Notifier started")
	if err := consumer.Run(ctx, n.handle, logger); err != nil {
		logger.Errorf("Consumer stopped: %v", err)
	}
	logger.Info("Notifier exited properly")
}

type notifier struct {
	mailer auth.Mailer
	logger logrus.FieldLogger
}

func (n *notifier) handle(ctx context.Context, key string, body []byte) error {
	switch key {
	case events.KeyPasswordResetMail:
		var msg auth.Message
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode mail: %w", err)
		}
		return n.mailer.Send(ctx, msg)
	case events.KeyOrderCreated:
		var e events.OrderCreated
		if err := json.Unmarshal(body, &e); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		n.logger.WithFields(logrus.Fields{
			"order_id": e.OrderID,
			"user_id":  e.UserID,
			"total":    e.Total,
			"items":    e.ItemCount,
		}).Info("New order received")
	case events.KeyOrderStatusChanged:
		var e events.OrderStatusChanged
		if err := json.Unmarshal(body, &e); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		n.logger.WithFields(logrus.Fields{
			"order_id": e.OrderID,
			"from":     e.From,
			"to":       e.To,
		}).Info("Order status changed")
	default:
		n.logger.WithField("key", key).Debug("Ignoring event")
	}
	return nil
}
