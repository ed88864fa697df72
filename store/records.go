package store

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/likith-indpro/votereum-backend/models"
)

// CreateElection persists a new election row, assigning an id if absent.
func (s *Store) CreateElection(e *models.Election) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return translate(s.db.Create(e).Error)
}

// Election fetches one election by id.
func (s *Store) Election(id string) (*models.Election, error) {
	var e models.Election
	if err := s.db.First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

// Elections lists elections, optionally only active ones.
func (s *Store) Elections(activeOnly bool) ([]models.Election, error) {
	var out []models.Election
	q := s.db.Order("created_at")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	return out, translate(q.Find(&out).Error)
}

// SetLedgerAddress records the election's contract address. The address is
// set at most once; a second call with a different address fails.
func (s *Store) SetLedgerAddress(id, address string) error {
	res := s.db.Model(&models.Election{}).
		Where("id = ? AND (ledger_address = '' OR ledger_address IS NULL)", id).
		Update("ledger_address", address)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	existing, err := s.Election(id)
	if err != nil {
		return err
	}
	if existing.LedgerAddress == address {
		return nil
	}
	return ErrLedgerAddressSet
}

// UpdateElectionTiming adjusts the voting window. The ledger address is
// deliberately untouchable through this path.
func (s *Store) UpdateElectionTiming(id string, startUnix, endUnix int64) error {
	res := s.db.Model(&models.Election{}).Where("id = ?", id).
		Updates(map[string]any{"start_time": startUnix, "end_time": endUnix})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateElection marks an election inactive. Elections are never deleted.
func (s *Store) DeactivateElection(id string) error {
	res := s.db.Model(&models.Election{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateCandidate persists a candidate with its ledger index mapping.
func (s *Store) CreateCandidate(c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return translate(s.db.Create(c).Error)
}

// Candidate fetches one candidate by id.
func (s *Store) Candidate(id string) (*models.Candidate, error) {
	var c models.Candidate
	if err := s.db.First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// CandidatesByElection lists the election's candidates in creation order.
func (s *Store) CandidatesByElection(electionID string) ([]models.Candidate, error) {
	var out []models.Candidate
	err := s.db.Where("election_id = ?", electionID).Order("created_at").Find(&out).Error
	return out, translate(err)
}

// CandidateByLedgerIndex resolves a candidate by its on-chain index.
func (s *Store) CandidateByLedgerIndex(electionID string, index uint64) (*models.Candidate, error) {
	var c models.Candidate
	err := s.db.First(&c, "election_id = ? AND ledger_index = ?", electionID, index).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// UpsertVoter creates or refreshes a voter enrollment profile.
func (s *Store) UpsertVoter(v *models.Voter) error {
	var existing models.Voter
	err := s.db.First(&existing, "address = ?", v.Address).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return translate(s.db.Create(v).Error)
	case err != nil:
		return translate(err)
	default:
		return translate(s.db.Model(&existing).Updates(v).Error)
	}
}

// Voter fetches an enrollment profile by wallet address.
func (s *Store) Voter(address string) (*models.Voter, error) {
	var v models.Voter
	if err := s.db.First(&v, "address = ?", address).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// CreateVoterRecord persists the per-election voter record.
func (s *Store) CreateVoterRecord(r *models.VoterRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return translate(s.db.Create(r).Error)
}

// VoterRecord fetches the record for a (voter, election) pair.
func (s *Store) VoterRecord(voterAddress, electionID string) (*models.VoterRecord, error) {
	var r models.VoterRecord
	err := s.db.First(&r, "voter_address = ? AND election_id = ?", voterAddress, electionID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

// MarkVoted sets the voted flag for a (voter, election) pair, creating the
// record when it does not exist (open-enrollment elections). The flag is
// monotonic and the selected candidate, once set, is never overwritten.
func (s *Store) MarkVoted(voterAddress, electionID, candidateID string) error {
	record, err := s.VoterRecord(voterAddress, electionID)
	if errors.Is(err, ErrNotFound) {
		return s.CreateVoterRecord(&models.VoterRecord{
			VoterAddress: voterAddress,
			ElectionID:   electionID,
			Eligible:     true,
			Voted:        true,
			CandidateID:  candidateID,
		})
	}
	if err != nil {
		return err
	}

	updates := map[string]any{"voted": true}
	if candidateID != "" && record.CandidateID == "" {
		updates["candidate_id"] = candidateID
	}
	return translate(s.db.Model(record).Updates(updates).Error)
}
