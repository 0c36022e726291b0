package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

type (
	// Frequency is the repetition cadence of a recurring rule.
	// Values are canonical lowercase; external tokens go through
	// ParseFrequency exactly once at the boundary.
	Frequency string

	// Kind is the direction of a money flow. Amounts carry no sign;
	// the kind decides whether they are spent or earned.
	Kind string

	Money struct {
		Cents int64
	}

	// Rule is a recurring obligation: a template that materializes one
	// concrete transaction per occurrence.
	Rule struct {
		ID                 int64
		Title              string
		Amount             Money // non-negative magnitude, direction in Kind
		Kind               Kind
		Category           string
		Frequency          Frequency
		StartDate          time.Time
		NextOccurrence     time.Time
		EstimatedMonthly   Money // derived cache, recomputed on amount/frequency change
		Active             bool
		ReminderEnabled    bool
		ReminderDaysBefore int
		CreatedAt          time.Time
		UpdatedAt          time.Time
	}

	// Transaction is one materialized occurrence of a rule.
	Transaction struct {
		ID          int64
		RuleID      int64
		Kind        Kind
		Amount      Money
		Category    string
		Description string
		OccurredAt  time.Time // the rule's nominal occurrence, not wall clock
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyTitle          = errors.New("empty title")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrInvalidKind         = errors.New("invalid kind")
	ErrInvalidStartDate    = errors.New("invalid start date")
	ErrInvalidReminderDays = errors.New("invalid reminder days")
	ErrTitleTooLong        = errors.New("title too long (max 200 characters)")
)

// IsValidationError reports whether err stems from domain validation
// rather than storage or transport.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrEmptyTitle, ErrInvalidFrequency,
		ErrInvalidKind, ErrInvalidStartDate, ErrInvalidReminderDays,
		ErrTitleTooLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ParseFrequency folds an external frequency token into a canonical
// Frequency. Matching is case-insensitive. Unrecognized tokens degrade
// to Monthly rather than failing: malformed input must never abort a
// batch, and monthly-equivalent is the neutral default.
func ParseFrequency(s string) Frequency {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily
	case Weekly:
		return Weekly
	case Biweekly:
		return Biweekly
	case Monthly:
		return Monthly
	case Yearly:
		return Yearly
	default:
		return Monthly
	}
}

// ParseKind folds an external kind token, defaulting to Expense.
func ParseKind(s string) Kind {
	if Kind(strings.ToLower(strings.TrimSpace(s))) == Income {
		return Income
	}
	return Expense
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Yearly:
		return true
	}
	return false
}

func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (r Rule) Validate() error {
	if len(strings.TrimSpace(r.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(r.Title) > 200 {
		return ErrTitleTooLong
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.StartDate.IsZero() {
		return ErrInvalidStartDate
	}
	if r.ReminderDaysBefore < 0 {
		return ErrInvalidReminderDays
	}
	return nil
}

func (t Transaction) Validate() error {
	if len(strings.TrimSpace(t.Description)) == 0 {
		return errors.New("empty description")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.OccurredAt.IsZero() {
		return errors.New("occurrence date cannot be zero")
	}
	return nil
}
