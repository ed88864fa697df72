package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/likith-indpro/votereum-backend/chain"
	"github.com/likith-indpro/votereum-backend/models"
	"github.com/likith-indpro/votereum-backend/store"
)

// Task payloads, JSON-encoded into ReconciliationTask.Payload.

type orphanedElectionPayload struct {
	LedgerAddress    string `json:"ledger_address"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	StartTime        int64  `json:"start_time"`
	EndTime          int64  `json:"end_time"`
	AuthorityAddress string `json:"authority_address"`
	OpenEnrollment   bool   `json:"open_enrollment"`
}

type unrecordedCandidatePayload struct {
	ElectionID  string `json:"election_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LedgerIndex uint64 `json:"ledger_index"`
}

type staleVoterRecordPayload struct {
	VoterAddress string `json:"voter_address"`
	ElectionID   string `json:"election_id"`
	CandidateID  string `json:"candidate_id"`
}

type probeVotePayload struct {
	VoterAddress string `json:"voter_address"`
	ElectionID   string `json:"election_id"`
	CandidateID  string `json:"candidate_id"`
	TxHash       string `json:"tx_hash"`
}

// Reconciler drains queued reconciliation tasks in the background. Tasks
// repair rather than decide: the ledger stays authoritative for vote state,
// the record store for identity and metadata.
type Reconciler struct {
	store       *store.Store
	gateway     chain.Gateway
	logger      zerolog.Logger
	interval    time.Duration
	maxAttempts int
	batchSize   int

	notifyCh chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewReconciler creates a reconciler draining tasks every interval.
func NewReconciler(st *store.Store, gateway chain.Gateway, interval time.Duration, maxAttempts int, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:       st,
		gateway:     gateway,
		logger:      logger.With().Str("component", "reconciler").Logger(),
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   32,
		notifyCh:    make(chan struct{}, 1),
	}
}

// Start launches the background worker.
func (r *Reconciler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.drain(ctx)
			case <-r.notifyCh:
				r.drain(ctx)
			}
		}
	}()
}

// Stop shuts the worker down and waits for the in-flight batch.
func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reconciler) enqueue(kind, electionID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error().Err(err).Str("kind", kind).Msg("failed to encode reconciliation payload")
		return
	}
	if err := r.store.EnqueueTask(kind, electionID, string(data)); err != nil {
		// Nothing left to do but log: the divergence is captured in the
		// log line for manual repair.
		r.logger.Error().
			Err(err).
			Str("kind", kind).
			Str("election_id", electionID).
			RawJSON("payload", data).
			Msg("failed to enqueue reconciliation task")
		return
	}

	select {
	case r.notifyCh <- struct{}{}:
	default:
	}
}

// EnqueueOrphanedElection records an election that exists on the ledger but
// whose off-chain row could not be written.
func (r *Reconciler) EnqueueOrphanedElection(e *models.Election) {
	r.enqueue(models.TaskOrphanedElection, e.ID, orphanedElectionPayload{
		LedgerAddress:    e.LedgerAddress,
		Title:            e.Title,
		Description:      e.Description,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		AuthorityAddress: e.AuthorityAddress,
		OpenEnrollment:   e.OpenEnrollment,
	})
}

// EnqueueUnrecordedCandidate records a name-to-ledger-index pair whose
// off-chain row could not be written.
func (r *Reconciler) EnqueueUnrecordedCandidate(electionID, name, description string, index uint64) {
	r.enqueue(models.TaskUnrecordedCandidate, electionID, unrecordedCandidatePayload{
		ElectionID:  electionID,
		Name:        name,
		Description: description,
		LedgerIndex: index,
	})
}

// EnqueueStaleVoterRecord schedules the cached voted flag to converge with
// the ledger.
func (r *Reconciler) EnqueueStaleVoterRecord(voterAddress, electionID, candidateID string) {
	r.enqueue(models.TaskStaleVoterRecord, electionID, staleVoterRecordPayload{
		VoterAddress: voterAddress,
		ElectionID:   electionID,
		CandidateID:  candidateID,
	})
}

// EnqueueProbeVote schedules an indeterminate vote submission to be settled
// out of band against the ledger's hasVoted predicate.
func (r *Reconciler) EnqueueProbeVote(voterAddress, electionID, candidateID, txHash string) {
	r.enqueue(models.TaskProbeVote, electionID, probeVotePayload{
		VoterAddress: voterAddress,
		ElectionID:   electionID,
		CandidateID:  candidateID,
		TxHash:       txHash,
	})
}

func (r *Reconciler) drain(ctx context.Context) {
	tasks, err := r.store.PendingTasks(r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to load pending reconciliation tasks")
		return
	}

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := r.handle(ctx, &task); err != nil {
			r.logger.Warn().
				Err(err).
				Uint("task_id", task.ID).
				Str("kind", task.Kind).
				Int("attempts", task.Attempts+1).
				Msg("reconciliation attempt failed")
			if ferr := r.store.FailTask(task.ID, err.Error(), r.maxAttempts); ferr != nil {
				r.logger.Error().Err(ferr).Uint("task_id", task.ID).Msg("failed to record task failure")
			}
			continue
		}

		if err := r.store.CompleteTask(task.ID); err != nil {
			r.logger.Error().Err(err).Uint("task_id", task.ID).Msg("failed to mark task done")
			continue
		}
		r.logger.Info().
			Uint("task_id", task.ID).
			Str("kind", task.Kind).
			Msg("reconciliation task completed")
	}
}

func (r *Reconciler) handle(ctx context.Context, task *models.ReconciliationTask) error {
	switch task.Kind {
	case models.TaskOrphanedElection:
		return r.repairOrphanedElection(task)
	case models.TaskUnrecordedCandidate:
		return r.repairUnrecordedCandidate(task)
	case models.TaskStaleVoterRecord:
		return r.repairStaleVoterRecord(task)
	case models.TaskProbeVote:
		return r.probeVote(ctx, task)
	default:
		return errors.Errorf("unknown task kind %q", task.Kind)
	}
}

func (r *Reconciler) repairOrphanedElection(task *models.ReconciliationTask) error {
	var p orphanedElectionPayload
	if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
		return errors.Wrap(err, "bad payload")
	}

	if existing, err := r.store.Election(task.ElectionID); err == nil {
		// Row appeared in the meantime; make sure it carries the address.
		if !existing.HasLedgerAddress() {
			return r.store.SetLedgerAddress(task.ElectionID, p.LedgerAddress)
		}
		return nil
	}
	return r.store.CreateElection(&models.Election{
		ID:               task.ElectionID,
		Title:            p.Title,
		Description:      p.Description,
		StartTime:        p.StartTime,
		EndTime:          p.EndTime,
		LedgerAddress:    p.LedgerAddress,
		AuthorityAddress: p.AuthorityAddress,
		OpenEnrollment:   p.OpenEnrollment,
		Active:           true,
	})
}

func (r *Reconciler) repairUnrecordedCandidate(task *models.ReconciliationTask) error {
	var p unrecordedCandidatePayload
	if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
		return errors.Wrap(err, "bad payload")
	}

	if _, err := r.store.CandidateByLedgerIndex(p.ElectionID, p.LedgerIndex); err == nil {
		return nil
	}
	return r.store.CreateCandidate(&models.Candidate{
		ElectionID:  p.ElectionID,
		Name:        p.Name,
		Description: p.Description,
		LedgerIndex: p.LedgerIndex,
	})
}

func (r *Reconciler) repairStaleVoterRecord(task *models.ReconciliationTask) error {
	var p staleVoterRecordPayload
	if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
		return errors.Wrap(err, "bad payload")
	}
	return r.store.MarkVoted(p.VoterAddress, p.ElectionID, p.CandidateID)
}

// probeVote settles an indeterminate submission. The ledger's hasVoted
// predicate is the truth: if it flips to true the vote landed and the
// record converges; until then the task keeps retrying, and an exhausted
// attempt budget abandons it without ever re-submitting the vote.
func (r *Reconciler) probeVote(ctx context.Context, task *models.ReconciliationTask) error {
	var p probeVotePayload
	if err := json.Unmarshal([]byte(task.Payload), &p); err != nil {
		return errors.Wrap(err, "bad payload")
	}

	election, err := r.store.Election(p.ElectionID)
	if err != nil {
		return errors.Wrap(err, "failed to load election")
	}
	if !election.HasLedgerAddress() {
		return errors.New("election has no ledger address")
	}

	voted, err := r.gateway.HasVoted(ctx, common.HexToAddress(election.LedgerAddress), common.HexToAddress(p.VoterAddress))
	if err != nil {
		return errors.Wrap(err, "failed to query ledger")
	}
	if !voted {
		return errors.Errorf("vote %s not yet visible on ledger", p.TxHash)
	}
	return r.store.MarkVoted(p.VoterAddress, p.ElectionID, p.CandidateID)
}
