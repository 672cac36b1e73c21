package auth

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Message is an outgoing account mail
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Link    string `json:"link,omitempty"`
}

// Mailer delivers account mails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes mails to the log instead of sending them
type LogMailer struct {
	Logger logrus.FieldLogger
}

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
		"link":    msg.Link,
	}).Info("Mail not sent, no mail transport configured")
	return nil
}

// JSONPublisher is the slice of an event publisher the queue mailer needs
type JSONPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// QueueMailer hands mails to a mail worker through the message broker
type QueueMailer struct {
	Publisher  JSONPublisher
	RoutingKey string
}

func (m QueueMailer) Send(ctx context.Context, msg Message) error {
	key := m.RoutingKey
	if key == "" {
		key = "mail.password_reset"
	}
	return m.Publisher.PublishJSON(ctx, key, msg)
}
