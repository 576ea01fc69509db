package model

import "time"

type MatchStatus string

const (
	MatchStatusActive   MatchStatus = "active"
	MatchStatusInactive MatchStatus = "inactive"
)

// CommitOutcome результат фиксации пары
type CommitOutcome string

const (
	CommitCreated   CommitOutcome = "created"
	CommitReused    CommitOutcome = "reused"    // активная пара тех же студентов уже была
	CommitClaimLost CommitOutcome = "claim_lost" // запись партнёра уже не в статусе waiting
)

// Match подтверждённая пара студентов.
// Student1ID всегда лексикографически меньше Student2ID.
type Match struct {
	ID                   string      `json:"id"`
	CourseID             string      `json:"course_id"`
	Student1ID           string      `json:"student1_id"`
	Student2ID           string      `json:"student2_id"`
	ConceptIDs           []string    `json:"concept_ids"`
	MeetingLink          string      `json:"meeting_link"`
	ComplementarityScore float64     `json:"complementarity_score"`
	Status               MatchStatus `json:"status"`
	CreatedAt            time.Time   `json:"created_at"`
}

// CanonicalPair возвращает идентификаторы в каноническом порядке
func CanonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// PartnerOf возвращает идентификатор второго участника пары
func (m *Match) PartnerOf(studentID string) string {
	if m.Student1ID == studentID {
		return m.Student2ID
	}
	return m.Student1ID
}

// Involves проверяет участвует ли студент в паре
func (m *Match) Involves(studentID string) bool {
	return m.Student1ID == studentID || m.Student2ID == studentID
}
