package storage

import "time"

// CycleStatus is the outcome of an archival cycle.
type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleSucceeded CycleStatus = "succeeded"
	// CyclePartial means at least one day was skipped or failed.
	CyclePartial   CycleStatus = "partial"
	CycleFailed    CycleStatus = "failed"
	CycleCancelled CycleStatus = "cancelled"
)

// DayOutcome is what happened to one candidate day.
type DayOutcome string

const (
	DayCommitted DayOutcome = "committed"
	DaySkipped   DayOutcome = "skipped"
	DayFailed    DayOutcome = "failed"
)

// Cycle is one row of archival_cycles.
type Cycle struct {
	ID         string      `json:"id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Status     CycleStatus `json:"status"`
	Committed  int         `json:"committed"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Error      string      `json:"error,omitempty"`
}

// DayRecord is one row of archival_days.
type DayRecord struct {
	CycleID   string     `json:"cycle_id"`
	Day       string     `json:"day"`
	Outcome   DayOutcome `json:"outcome"`
	Entries   int        `json:"entries"`
	Detail    string     `json:"detail,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
