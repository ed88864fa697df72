package service

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/sha3"

	"github.com/likith-indpro/votereum-backend/models"
	"github.com/likith-indpro/votereum-backend/store"
)

// EnrollVoterRequest enrolls a wallet address into an election.
type EnrollVoterRequest struct {
	VoterAddress string `json:"voter_address"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Region       string `json:"region"`
	Age          int    `json:"age"`
	DocumentHash string `json:"document_hash,omitempty"`
}

// EnrollmentService manages voter profiles and the per-election voter
// records the EligibilityGate consults. Enrollment is entirely off-chain;
// the ledger only ever learns about a voter when they vote.
type EnrollmentService struct {
	store  *store.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewEnrollmentService creates the service.
func NewEnrollmentService(st *store.Store, logger zerolog.Logger) *EnrollmentService {
	return &EnrollmentService{
		store:  st,
		logger: logger.With().Str("component", "enrollment").Logger(),
		now:    time.Now,
	}
}

// EnrollVoter upserts the voter's profile and creates their eligibility
// record for the election. Enrolling the same voter twice into the same
// election is rejected.
func (s *EnrollmentService) EnrollVoter(electionID string, req EnrollVoterRequest) (*models.VoterRecord, error) {
	if !common.IsHexAddress(req.VoterAddress) {
		return nil, NewError(CodeInvalidPayload, "voter address %q is not a valid address", req.VoterAddress)
	}
	address := normalizeAddress(common.HexToAddress(req.VoterAddress))

	election, err := s.store.Election(electionID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, NewError(CodeElectionNotFound, "election %s not found", electionID)
		}
		return nil, WrapError(err, CodeUnavailable, "failed to load election")
	}
	if !election.Active {
		return nil, NewError(CodeElectionExpired, "election is no longer active")
	}

	verificationHash := req.DocumentHash
	if verificationHash == "" {
		digest := sha3.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", address, req.FirstName, req.LastName, s.now().UnixNano())))
		verificationHash = hex.EncodeToString(digest[:])
	}

	voter := &models.Voter{
		Address:          address,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Region:           req.Region,
		Age:              req.Age,
		VerificationHash: verificationHash,
		Verified:         true,
	}
	if err := s.store.UpsertVoter(voter); err != nil {
		return nil, WrapError(err, CodeUnavailable, "failed to save voter profile")
	}

	record := &models.VoterRecord{
		VoterAddress: address,
		ElectionID:   electionID,
		Eligible:     true,
	}
	if err := s.store.CreateVoterRecord(record); err != nil {
		if err == store.ErrDuplicate {
			return nil, NewError(CodeAlreadyEnrolled, "voter is already enrolled in this election")
		}
		return nil, WrapError(err, CodeUnavailable, "failed to create voter record")
	}

	s.logger.Info().
		Str("voter", address).
		Str("election_id", electionID).
		Msg("voter enrolled")
	return record, nil
}
