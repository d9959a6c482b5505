package models

import "time"

// DefaultLockoutThreshold is the number of trailing failures an account may accumulate
// before every further attempt is rejected.
const DefaultLockoutThreshold = 5

// LoginAttemptAggregate is the per-account summary of failed login attempts
type LoginAttemptAggregate struct {
	ID           int64  `db:"id"`
	AccountID    string `db:"account_id"`
	Unsuccessful int    `db:"unsuccessful"`
}

// LoginAttemptEvent is an append-only record of one accepted login attempt
type LoginAttemptEvent struct {
	ID          int64     `db:"id"`
	AggregateID int64     `db:"aggregate_id"`
	IPAddress   string    `db:"ip_address"`
	Successful  bool      `db:"successful"`
	AttemptedAt time.Time `db:"attempted_at"`
}

// AttemptOutcome is the tracker's verdict on a login attempt
type AttemptOutcome int

const (
	OutcomeUnauthorized AttemptOutcome = iota
	OutcomeAuthorized
	OutcomeLocked
)

func (o AttemptOutcome) String() string {
	switch o {
	case OutcomeAuthorized:
		return "authorized"
	case OutcomeLocked:
		return "locked"
	default:
		return "unauthorized"
	}
}

// AttemptDecision describes how a single attempt changes the tracker state.
// The repository persists it atomically with the read it was derived from.
type AttemptDecision struct {
	Outcome      AttemptOutcome
	Unsuccessful int  // counter value to persist when Persist is set
	Persist      bool // write Unsuccessful back to the aggregate
	RecordEvent  bool // append a LoginAttemptEvent
	Successful   bool // outcome stored on the event
	IPAddress    string
}

// AttemptDecider derives the decision for one attempt from the locked aggregate.
// A nil aggregate means the account has never attempted a login.
type AttemptDecider func(current *LoginAttemptAggregate) AttemptDecision
