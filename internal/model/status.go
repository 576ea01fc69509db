package model

import "time"

type GroupStatus string

const (
	GroupStatusNone     GroupStatus = "none"
	GroupStatusWaiting  GroupStatus = "waiting"
	GroupStatusMatched  GroupStatus = "matched"
	GroupStatusOptedOut GroupStatus = "opted_out"
	GroupStatusCleared  GroupStatus = "cleared"
)

// MatchResult результат успешного подбора пары
type MatchResult struct {
	MatchID              string   `json:"matchId"`
	Partner              *Student `json:"partner"`
	ConceptIDs           []string `json:"conceptIds"`
	ConceptLabels        []string `json:"conceptLabels"`
	MeetingLink          string   `json:"meetingLink"`
	ComplementarityScore float64  `json:"complementarityScore"`
}

// StatusResult ответ на opt-in и на запрос статуса.
// Заполняются только поля, относящиеся к Status.
type StatusResult struct {
	Status               GroupStatus `json:"status"`
	PoolID               string      `json:"poolId,omitempty"`
	MatchID              string      `json:"matchId,omitempty"`
	Partner              *Student    `json:"partner,omitempty"`
	ConceptLabels        []string    `json:"conceptLabels,omitempty"`
	MeetingLink          string      `json:"meetingLink,omitempty"`
	ComplementarityScore *float64    `json:"complementarityScore,omitempty"`
	ExpiresAt            *time.Time  `json:"expiresAt,omitempty"`
	CreatedAt            *time.Time  `json:"createdAt,omitempty"`
}

// Matched собирает ответ со статусом matched из результата подбора
func Matched(r *MatchResult) *StatusResult {
	score := r.ComplementarityScore
	return &StatusResult{
		Status:               GroupStatusMatched,
		MatchID:              r.MatchID,
		Partner:              r.Partner,
		ConceptLabels:        r.ConceptLabels,
		MeetingLink:          r.MeetingLink,
		ComplementarityScore: &score,
	}
}
