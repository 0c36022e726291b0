package amqp

import (
	"context"
	"time"
)

// Notifier publishes reminder raise and retract events over AMQP. A
// nil client disables delivery, which lets the engine run without a
// broker configured.
type Notifier struct {
	client *Client
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Enabled() bool {
	return n != nil && n.client != nil
}

func (n *Notifier) RaiseReminder(ctx context.Context, ruleID int64, title, formattedAmount string, daysBefore int, dueAt time.Time) error {
	if !n.Enabled() {
		return nil
	}
	return n.client.PublishReminder(ctx, &ReminderMessage{
		Action:          ReminderRaise,
		RuleID:          ruleID,
		Title:           title,
		FormattedAmount: formattedAmount,
		DaysBefore:      daysBefore,
		DueAt:           dueAt,
		Timestamp:       time.Now(),
	})
}

func (n *Notifier) RetractReminder(ctx context.Context, ruleID int64) error {
	if !n.Enabled() {
		return nil
	}
	return n.client.PublishReminder(ctx, &ReminderMessage{
		Action:    ReminderRetract,
		RuleID:    ruleID,
		Timestamp: time.Now(),
	})
}
