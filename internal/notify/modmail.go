package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/craftsleuth/sleuth/internal/storage"
)

// ErrTransport wraps every delivery failure.
var ErrTransport = errors.New("notification delivery failed")

// Sender delivers one private message.
type Sender interface {
	Compose(ctx context.Context, to, subject, text string) error
}

// Modmail sends notifications to a community's moderators.
type Modmail struct {
	sender    Sender
	community string
	logger    *slog.Logger
}

// NewModmail creates a Modmail addressed to /r/<community>.
func NewModmail(sender Sender, community string) *Modmail {
	return &Modmail{
		sender:    sender,
		community: community,
		logger:    slog.Default(),
	}
}

// Destination returns the modmail recipient.
func (m *Modmail) Destination() string {
	return "/r/" + m.community
}

// Send delivers subject and body. Failures are logged and returned wrapped
// in ErrTransport; Send does not retry.
func (m *Modmail) Send(ctx context.Context, subject, body string) error {
	to := m.Destination()
	m.logger.Info("sending modmail", "to", to, "subject", subject)
	if err := m.sender.Compose(ctx, to, subject, body); err != nil {
		m.logger.Error("modmail delivery failed", "to", to, "subject", subject, "error", err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// PostRemoved reports a post whose removal method just became known.
func (m *Modmail) PostRemoved(ctx context.Context, sub storage.Submission, method string) error {
	return m.Send(ctx, SubjectPostRemoved, RemovalMessage(m.community, sub, method))
}

// AccountDeleted reports a tracked post whose author account is gone.
func (m *Modmail) AccountDeleted(ctx context.Context, sub storage.Submission) error {
	return m.Send(ctx, SubjectAccountDeleted, RemovalMessage(m.community, sub, MethodAccountDeleted))
}

// ReportError sends a best-effort crash report.
func (m *Modmail) ReportError(ctx context.Context, bot, contact string, cause error, trace string) error {
	subject, body := ErrorReport(bot, contact, cause, trace)
	return m.Send(ctx, subject, body)
}
