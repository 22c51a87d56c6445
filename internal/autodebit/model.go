package autodebit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the recurrence interval of an auto-debit
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether the frequency is one of the supported intervals
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly,
		FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// Status is the lifecycle state of an auto-debit
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// maxDayOfMonth caps the monthly anchor day so every month has the date
const maxDayOfMonth = 28

// AutoDebit is a recurring expense executed by the batch pass. Failed
// executions keep NextExecution in place so the pass retries on its next run.
type AutoDebit struct {
	ID            uuid.UUID       `json:"id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	AccountID     uuid.UUID       `json:"account_id"`
	CategoryID    uuid.UUID       `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Frequency     Frequency       `json:"frequency"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	NextExecution time.Time       `json:"next_execution"`
	LastExecution *time.Time      `json:"last_execution,omitempty"`
	Status        Status          `json:"status"`
	ExecutionCount int            `json:"execution_count"`
	FailedAttempts int            `json:"failed_attempts"`
	DayOfMonth     *int           `json:"day_of_month,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsDue reports whether the debit should execute on the given day: it must be
// active, scheduled at or before today, and today must not be past the end date.
func (d *AutoDebit) IsDue(today time.Time) bool {
	if d.Status != StatusActive {
		return false
	}
	if d.NextExecution.After(today) {
		return false
	}
	if d.EndDate != nil && today.After(*d.EndDate) {
		return false
	}
	return true
}

// NextExecutionAfter computes the execution following the given one per the
// debit's frequency. Monthly-style intervals clamp to the shorter target
// month; when DayOfMonth is set the day anchors to min(DayOfMonth, 28).
func (d *AutoDebit) NextExecutionAfter(executed time.Time) time.Time {
	switch d.Frequency {
	case FrequencyDaily:
		return executed.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return executed.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return executed.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return d.addMonthsAnchored(executed, 1)
	case FrequencyQuarterly:
		return d.addMonthsAnchored(executed, 3)
	case FrequencyYearly:
		return executed.AddDate(1, 0, 0)
	}
	return executed
}

func (d *AutoDebit) addMonthsAnchored(t time.Time, months int) time.Time {
	day := t.Day()
	if d.DayOfMonth != nil {
		day = *d.DayOfMonth
		if day > maxDayOfMonth {
			day = maxDayOfMonth
		}
	}
	year, month, _ := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := firstOfTarget.AddDate(0, 1, -1).Day(); day > last {
		day = last
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
