package service

import (
	"context"
	"errors"

	"github.com/strangerdangercoffee/portal/internal/domain"
	"github.com/strangerdangercoffee/portal/internal/infra/observability"
	"github.com/strangerdangercoffee/portal/internal/port"

	"go.uber.org/zap"
)

var errContactNotConfigured = errors.New("contact form delivery is not configured")

// Contact forwards the public contact form to the team. Unlike the
// post-commit notifications, delivery is the operation itself, so a failure
// is returned.
type Contact struct {
	sender    port.EmailSender
	template  string
	teamEmail string
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewContact creates the contact flow. A nil sender or empty template
// rejects every message.
func NewContact(sender port.EmailSender, template, teamEmail string, metrics *observability.Metrics, logger *zap.Logger) *Contact {
	return &Contact{sender: sender, template: template, teamEmail: teamEmail, metrics: metrics, logger: logger}
}

// Send validates and delivers msg.
func (c *Contact) Send(ctx context.Context, msg *domain.ContactMessage) (*domain.Banner, error) {
	ctx, span := tracer.Start(ctx, "Contact.Send")
	defer span.End()

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if c.sender == nil || c.template == "" {
		c.metrics.IncrNotification(KindContact, domain.NotifySkipped)
		return nil, &domain.ErrExternalService{Service: "email", Err: errContactNotConfigured}
	}

	err := c.sender.Send(ctx, c.template, map[string]string{
		"to_email":   c.teamEmail,
		"to_name":    teamName,
		"from_name":  msg.Name,
		"from_email": msg.Email,
		"reply_to":   msg.Email,
		"subject":    msg.Subject,
		"message":    msg.Message,
	})
	if err != nil {
		c.logger.Error("contact: delivery failed", zap.Error(err))
		c.metrics.IncrNotification(KindContact, domain.NotifyFailed)
		c.metrics.IncrExternalError("email")
		return nil, &domain.ErrExternalService{
			Service: "email",
			Err:     errors.New("An error occurred while sending your message. Please try again."),
		}
	}

	c.metrics.IncrNotification(KindContact, domain.NotifySent)
	return domain.SuccessBanner("Thank you for your message! We'll get back to you soon."), nil
}
