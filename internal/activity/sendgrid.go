// internal/activity/sendgrid.go
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendgridNotifier emails a digest of each mutation to a configured
// recipient (typically a team inbox or a relay the in-app notifier
// consumes). Delivery failures are logged, not propagated: the mutation has
// already committed and must not appear to fail.
type SendgridNotifier struct {
	client *sendgrid.Client
	from   string
	to     string
}

func NewSendgridNotifier(apiKey, from, to string) *SendgridNotifier {
	return &SendgridNotifier{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
		to:     to,
	}
}

func (n *SendgridNotifier) Notify(ctx context.Context, events []Event) error {
	for _, ev := range events {
		subject := fmt.Sprintf("[board] %s", ev.Action)
		if ev.TaskID != nil {
			subject = fmt.Sprintf("[board] %s on task %s", ev.Action, ev.TaskID)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Action: %s\n", ev.Action)
		if ev.TaskID != nil {
			fmt.Fprintf(&b, "Task: %s\n", ev.TaskID)
		}
		if ev.ActorID != nil {
			fmt.Fprintf(&b, "Actor: %s\n", ev.ActorID)
		}
		for _, c := range ev.Changes {
			fmt.Fprintf(&b, "%s: %q -> %q\n", c.Field, c.Old, c.New)
		}

		from := mail.NewEmail("", n.from)
		to := mail.NewEmail("", n.to)
		message := mail.NewSingleEmail(from, subject, to, b.String(), "")

		response, err := n.client.Send(message)
		if err != nil {
			slog.ErrorContext(ctx, "sending notification email", "error", err, "task_id", ev.TaskID)
			continue
		}
		if response.StatusCode != 202 {
			slog.ErrorContext(ctx, "unexpected Sendgrid status",
				"status", response.StatusCode, "task_id", ev.TaskID)
		}
	}
	return nil
}
