package amqp

import (
	"encoding/json"
	"time"
)

// Reminder actions.
const (
	ReminderRaise   = "raise"
	ReminderRetract = "retract"
)

// TransactionRecordedMessage announces that a recurring rule
// materialized a ledger transaction. It carries only identifiers; the
// ledger worker fetches the full transaction from the database.
type TransactionRecordedMessage struct {
	TransactionID int64     `json:"transaction_id"`
	RuleID        int64     `json:"rule_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionRecordedMessage(transactionID, ruleID int64) *TransactionRecordedMessage {
	return &TransactionRecordedMessage{
		TransactionID: transactionID,
		RuleID:        ruleID,
		Timestamp:     time.Now(),
	}
}

func (m *TransactionRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionRecordedMessageFromJSON(data []byte) (*TransactionRecordedMessage, error) {
	var m TransactionRecordedMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// ReminderMessage carries a reminder notification for an upcoming
// occurrence, or its retraction once the occurrence has executed.
type ReminderMessage struct {
	Action          string    `json:"action"` // raise or retract
	RuleID          int64     `json:"rule_id"`
	Title           string    `json:"title,omitempty"`
	FormattedAmount string    `json:"formatted_amount,omitempty"`
	DaysBefore      int       `json:"days_before,omitempty"`
	DueAt           time.Time `json:"due_at,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var m ReminderMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
