package relay

import "fmt"

// Error record categories.
const (
	CategoryMainCycle         = "main_cycle"
	CategoryAccountProcessing = "account_processing"
	CategoryMaintenance       = "maintenance"
)

// SourceFetchError means the account's backlog could not be retrieved. The
// account is skipped for this cycle with its cursor untouched.
type SourceFetchError struct {
	Handle string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch posts for %s: %v", e.Handle, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// PublishError means the sink failed to deliver PostID. That post and every
// later one of the account wait for the next cycle.
type PublishError struct {
	Handle string
	PostID string
	Err    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish post %s for %s: %v", e.PostID, e.Handle, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// LedgerWriteError is a storage failure while checking, recording or
// advancing past a post. It aborts the whole cycle.
type LedgerWriteError struct {
	Op     string
	PostID string
	Err    error
}

func (e *LedgerWriteError) Error() string {
	return fmt.Sprintf("ledger %s for post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *LedgerWriteError) Unwrap() error { return e.Err }

// MainCycleError wraps whatever escaped a cycle's account fan-out.
type MainCycleError struct {
	CycleID string
	Err     error
}

func (e *MainCycleError) Error() string {
	return fmt.Sprintf("cycle %s failed: %v", e.CycleID, e.Err)
}

func (e *MainCycleError) Unwrap() error { return e.Err }
