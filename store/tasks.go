package store

import (
	"github.com/likith-indpro/votereum-backend/models"
)

// EnqueueTask queues a reconciliation task.
func (s *Store) EnqueueTask(kind, electionID, payload string) error {
	task := &models.ReconciliationTask{
		Kind:       kind,
		Status:     models.TaskPending,
		ElectionID: electionID,
		Payload:    payload,
	}
	return translate(s.db.Create(task).Error)
}

// PendingTasks returns up to limit pending tasks, oldest first.
func (s *Store) PendingTasks(limit int) ([]models.ReconciliationTask, error) {
	var out []models.ReconciliationTask
	err := s.db.Where("status = ?", models.TaskPending).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	return out, translate(err)
}

// CompleteTask marks a task done.
func (s *Store) CompleteTask(id uint) error {
	return translate(s.db.Model(&models.ReconciliationTask{}).
		Where("id = ?", id).
		Update("status", models.TaskDone).Error)
}

// FailTask records a failed attempt; once attempts reach maxAttempts the
// task is abandoned and needs manual repair.
func (s *Store) FailTask(id uint, attemptErr string, maxAttempts int) error {
	var task models.ReconciliationTask
	if err := s.db.First(&task, "id = ?", id).Error; err != nil {
		return translate(err)
	}

	task.Attempts++
	task.LastError = attemptErr
	if task.Attempts >= maxAttempts {
		task.Status = models.TaskAbandoned
	}
	return translate(s.db.Save(&task).Error)
}
