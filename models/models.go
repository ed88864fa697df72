// Package models contains the GORM-backed entities shared by the off-chain
// record store and the coordination services. Vote tallies are deliberately
// absent: counts are always read live from the ledger contracts.
package models

import (
	"time"
)

// Election is the off-chain record of an election. LedgerAddress stays empty
// until the on-chain creation is confirmed; an election without it must never
// accept votes. Elections are deactivated, never deleted.
type Election struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	StartTime        int64     `json:"start_time"` // unix seconds
	EndTime          int64     `json:"end_time"`   // unix seconds
	LedgerAddress    string    `gorm:"index" json:"ledger_address"`
	AuthorityAddress string    `json:"authority_address"`
	OpenEnrollment   bool      `json:"open_enrollment"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasLedgerAddress reports whether on-chain creation completed.
func (e *Election) HasLedgerAddress() bool {
	return e.LedgerAddress != ""
}

// WindowOpen reports whether the election accepts votes at the given instant.
func (e *Election) WindowOpen(at time.Time) bool {
	ts := at.Unix()
	return e.Active && ts >= e.StartTime && ts < e.EndTime
}

// Candidate maps an off-chain candidate to its ledger-side index. The mapping
// is written exactly once at creation time; LedgerIndex 0 means the on-chain
// index was never recorded and only the degraded name-join can recover it.
type Candidate struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	ElectionID  string    `gorm:"index" json:"election_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LedgerIndex uint64    `json:"ledger_index"` // 1-based on-chain candidate id
	CreatedAt   time.Time `json:"created_at"`
}

// VoterRecord caches per-election voter state. Voted is monotonic: once true
// it is never reset, and the ledger's hasVoted predicate always wins over it.
type VoterRecord struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	VoterAddress string    `gorm:"uniqueIndex:idx_voter_election" json:"voter_address"`
	ElectionID   string    `gorm:"uniqueIndex:idx_voter_election" json:"election_id"`
	Eligible     bool      `json:"eligible"`
	Voted        bool      `json:"voted"`
	CandidateID  string    `json:"candidate_id"` // set only after a confirmed vote
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Voter is the enrollment profile of a wallet address.
type Voter struct {
	Address          string    `gorm:"primaryKey" json:"address"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Region           string    `json:"region"`
	Age              int       `json:"age"`
	VerificationHash string    `json:"verification_hash"`
	Verified         bool      `json:"verified"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Reconciliation task kinds queued when the two stores diverge.
const (
	TaskOrphanedElection    = "orphaned_election"    // ledger election exists, off-chain row missing
	TaskUnrecordedCandidate = "unrecorded_candidate" // on-chain index assigned, off-chain row missing
	TaskStaleVoterRecord    = "stale_voter_record"   // ledger says voted, cache says not
	TaskProbeVote           = "probe_vote"           // vote submitted, confirmation outcome unknown
)

// Reconciliation task statuses.
const (
	TaskPending   = "pending"
	TaskDone      = "done"
	TaskAbandoned = "abandoned"
)

// ReconciliationTask is a queued repair of a divergence between the ledger
// and the record store. Tasks are retried by the reconciler until they
// succeed or exhaust their attempt budget.
type ReconciliationTask struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       string    `gorm:"index" json:"kind"`
	Status     string    `gorm:"index" json:"status"`
	ElectionID string    `gorm:"index" json:"election_id"`
	Payload    string    `json:"payload"` // JSON, shape depends on Kind
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
