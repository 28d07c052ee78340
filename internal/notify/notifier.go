// Package notify consumes invitation lifecycle events and emails the
// invitee.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/pkg/mailer"
	"github.com/parampatil/dashboardv2-sub000/pkg/messagequeue"
)

// Notifier listens on the invitation event queue and sends one email per
// created/approved/rejected event.
type Notifier struct {
	queue     messagequeue.MessageQueue
	queueName string
	mail      *mailer.Mailer
	clientURL string
	logger    *zap.Logger
}

// New creates a Notifier.
func New(queue messagequeue.MessageQueue, queueName string, mail *mailer.Mailer, clientURL string, logger *zap.Logger) *Notifier {
	return &Notifier{
		queue:     queue,
		queueName: queueName,
		mail:      mail,
		clientURL: clientURL,
		logger:    logger,
	}
}

// Start registers the queue consumer. Delivery failures are logged and the
// event is dropped; invitation state is authoritative in the store, not the
// mailbox.
func (n *Notifier) Start() error {
	return n.queue.Consume(n.queueName, n.handle)
}

func (n *Notifier) handle(body []byte) {
	var event core.InvitationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		n.logger.Warn("discarding malformed invitation event", zap.Error(err))
		return
	}

	subject, text, ok := n.compose(event)
	if !ok {
		return
	}
	if err := n.mail.Send(event.Email, subject, text); err != nil {
		n.logger.Warn("failed to send invitation email",
			zap.String("email", event.Email),
			zap.String("type", event.Type),
			zap.Error(err))
		return
	}
	n.logger.Info("invitation email sent",
		zap.String("email", event.Email),
		zap.String("type", event.Type))
}

func (n *Notifier) compose(event core.InvitationEvent) (subject, body string, ok bool) {
	switch event.Type {
	case "created", "approved":
		subject = "You have been invited to the admin dashboard"
		expiryNote := ""
		if event.Expiry != nil {
			expiryNote = fmt.Sprintf("<p>This invitation expires on %s.</p>", event.Expiry.Format(time.RFC1123))
		}
		body = fmt.Sprintf(
			"<html><p>You have been granted access to the admin dashboard.</p>"+
				"<p>Sign in at <a href=%q>%s</a> with this email address.</p>%s</html>",
			n.clientURL, n.clientURL, expiryNote)
		return subject, body, true
	case "rejected":
		subject = "Your dashboard access request"
		body = "<html><p>Your request for access to the admin dashboard was not approved.</p></html>"
		return subject, body, true
	default:
		return "", "", false
	}
}
