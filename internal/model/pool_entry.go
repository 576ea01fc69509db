package model

import "time"

type PoolStatus string

const (
	PoolStatusWaiting PoolStatus = "waiting" // Ожидает пару
	PoolStatusMatched PoolStatus = "matched" // Пара найдена
	PoolStatusExpired PoolStatus = "expired" // Студент вышел из пула
)

// PoolEntry запись студента в пуле ожидания курса
type PoolEntry struct {
	ID         string     `json:"id"`
	StudentID  string     `json:"student_id"`
	CourseID   string     `json:"course_id"`
	ConceptIDs []string   `json:"concept_ids"`
	Status     PoolStatus `json:"status"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsExpired проверяет истёк ли срок ожидания на момент now
func (e *PoolEntry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}
