package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
)

// PoolStore хранилище пула ожидания (study_group_pool)
type PoolStore interface {
	// Replace удаляет прежнюю запись студента в курсе и вставляет новую
	Replace(ctx context.Context, entry *model.PoolEntry) error
	// ListWaiting возвращает ожидающих студентов курса, кроме excludeStudentID,
	// у которых срок ожидания не истёк к моменту now. Порядок детерминирован.
	ListWaiting(ctx context.Context, courseID, excludeStudentID string, now time.Time) ([]*model.PoolEntry, error)
	GetWaiting(ctx context.Context, studentID, courseID string) (*model.PoolEntry, error)
	// Expire переводит запись waiting -> expired. false, если записи в статусе waiting нет.
	Expire(ctx context.Context, studentID, courseID string) (bool, error)
	Delete(ctx context.Context, studentID, courseID string) (int64, error)
}

// MatchStore хранилище подтверждённых пар (study_group_matches)
type MatchStore interface {
	// Commit атомарно фиксирует пару: при claimPartner переводит запись партнёра
	// waiting -> matched, сохраняет пару и отмечает запись инициатора matched.
	// Если запись партнёра уже забрана, ничего не меняет и возвращает CommitClaimLost.
	// Если активная пара тех же студентов уже есть, match заполняется ею (CommitReused).
	// При ошибке не остаётся ни одного изменения.
	Commit(ctx context.Context, match *model.Match, initiatorID string, claimPartner bool) (model.CommitOutcome, error)
	GetActiveForStudent(ctx context.Context, courseID, studentID string) (*model.Match, error)
	// DeactivateForStudent переводит активные пары студента в inactive и возвращает их
	DeactivateForStudent(ctx context.Context, courseID, studentID string) ([]*model.Match, error)
}

// MasteryReader читает уверенность студента по концептам
type MasteryReader interface {
	Confidences(ctx context.Context, studentID string, conceptIDs []string) (map[string]float64, error)
}

type StudentDirectory interface {
	GetByID(ctx context.Context, id string) (*model.Student, error)
	ListCoursemates(ctx context.Context, courseID, excludeStudentID string, limit int) ([]*model.Student, error)
}

type ConceptCatalog interface {
	// CountInCourse считает сколько из conceptIDs принадлежат курсу
	CountInCourse(ctx context.Context, courseID string, conceptIDs []string) (int, error)
	Labels(ctx context.Context, conceptIDs []string) ([]string, error)
}

// StatusCache внешний кэш статусов. Все методы best-effort: ошибки кэша
// не должны влиять на результат операций.
type StatusCache interface {
	GetStatus(ctx context.Context, courseID, studentID string) (*model.StatusResult, bool)
	SetStatus(ctx context.Context, courseID, studentID string, status *model.StatusResult, ttl time.Duration)
	InvalidateStudent(ctx context.Context, courseID string, studentIDs ...string)
	InvalidateCourse(ctx context.Context, courseID string)
}

// MatchNotifier оповещает участников о новой паре (best-effort)
type MatchNotifier interface {
	NotifyMatch(ctx context.Context, match *model.Match, participants ...*model.Student)
}

// Stores набор хранилищ, с которыми работает движок
type Stores struct {
	Pool     PoolStore
	Matches  MatchStore
	Mastery  MasteryReader
	Students StudentDirectory
	Concepts ConceptCatalog
}
