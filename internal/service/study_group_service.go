package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// courseLockStripes число мьютексов, между которыми распределяются курсы
const courseLockStripes = 64

// OptInRequest запрос на вход в пул учебных групп
type OptInRequest struct {
	CourseID   string
	StudentID  string
	ConceptIDs []string
	// SkipMatching оставляет студента в статусе waiting, не запуская подбор
	SkipMatching bool
}

// StudyGroupService переходы состояний: opt-in, opt-out, clear
type StudyGroupService struct {
	stores  Stores
	matcher *Matcher
	cache   StatusCache
	poolTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger

	courseLocks [courseLockStripes]sync.Mutex
}

func NewStudyGroupService(
	stores Stores,
	matcher *Matcher,
	cache StatusCache,
	poolTTL time.Duration,
	logger *zap.Logger,
) *StudyGroupService {
	return &StudyGroupService{
		stores:  stores,
		matcher: matcher,
		cache:   cache,
		poolTTL: poolTTL,
		now:     time.Now,
		logger:  logger,
	}
}

// lockCourse сериализует изменения пула одного курса внутри процесса.
// Курсы с одинаковым номером полосы делят мьютекс; одновременно берётся только один.
func (s *StudyGroupService) lockCourse(courseID string) func() {
	l := &s.courseLocks[courseStripe(courseID)]
	l.Lock()
	return l.Unlock
}

func courseStripe(courseID string) int {
	return int(xxhash.Sum64String(courseID) % courseLockStripes)
}

// OptIn добавляет студента в пул (последний opt-in побеждает) и сразу пытается подобрать пару
func (s *StudyGroupService) OptIn(ctx context.Context, req OptInRequest) (*model.StatusResult, error) {
	conceptIDs, err := s.validateOptIn(ctx, req)
	if err != nil {
		return nil, err
	}

	unlock := s.lockCourse(req.CourseID)
	defer unlock()

	now := s.now()
	entry := &model.PoolEntry{
		ID:         uuid.NewString(),
		StudentID:  req.StudentID,
		CourseID:   req.CourseID,
		ConceptIDs: conceptIDs,
		Status:     model.PoolStatusWaiting,
		ExpiresAt:  now.Add(s.poolTTL),
		CreatedAt:  now,
	}

	if err := s.stores.Pool.Replace(ctx, entry); err != nil {
		return nil, fmt.Errorf("replace pool entry: %w", err)
	}

	s.cache.InvalidateStudent(ctx, req.CourseID, req.StudentID)

	s.logger.Info("Student joined study group pool",
		zap.String("pool_id", entry.ID),
		zap.String("course_id", req.CourseID),
		zap.String("student_id", req.StudentID),
		zap.Strings("concept_ids", conceptIDs),
		zap.Bool("skip_matching", req.SkipMatching),
	)

	if !req.SkipMatching {
		result, err := s.matcher.FindMatch(ctx, req.StudentID, req.CourseID, conceptIDs)
		if err != nil {
			return nil, fmt.Errorf("find match: %w", err)
		}
		if result != nil {
			return model.Matched(result), nil
		}
	}

	labels, err := s.stores.Concepts.Labels(ctx, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("get concept labels: %w", err)
	}

	return &model.StatusResult{
		Status:        model.GroupStatusWaiting,
		PoolID:        entry.ID,
		ConceptLabels: labels,
		ExpiresAt:     &entry.ExpiresAt,
	}, nil
}

// validateOptIn проверяет запрос и возвращает концепты без дублей в исходном порядке
func (s *StudyGroupService) validateOptIn(ctx context.Context, req OptInRequest) ([]string, error) {
	if strings.TrimSpace(req.CourseID) == "" {
		return nil, fmt.Errorf("%w: course id is required", ErrValidation)
	}
	if strings.TrimSpace(req.StudentID) == "" {
		return nil, fmt.Errorf("%w: student id is required", ErrValidation)
	}

	seen := make(map[string]struct{}, len(req.ConceptIDs))
	conceptIDs := make([]string, 0, len(req.ConceptIDs))
	for _, id := range req.ConceptIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		conceptIDs = append(conceptIDs, id)
	}

	if len(conceptIDs) == 0 {
		return nil, fmt.Errorf("%w: must select at least one concept", ErrValidation)
	}

	valid, err := s.stores.Concepts.CountInCourse(ctx, req.CourseID, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("validate concepts: %w", err)
	}

	if valid != len(conceptIDs) {
		return nil, fmt.Errorf("%w: invalid concept ids for course", ErrValidation)
	}

	return conceptIDs, nil
}

// OptOut выводит студента из пула. Повторный вызов ничего не делает.
func (s *StudyGroupService) OptOut(ctx context.Context, courseID, studentID string) (*model.StatusResult, error) {
	if err := requireIDs(courseID, studentID); err != nil {
		return nil, err
	}

	unlock := s.lockCourse(courseID)
	defer unlock()

	expired, err := s.stores.Pool.Expire(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("expire pool entry: %w", err)
	}

	s.cache.InvalidateStudent(ctx, courseID, studentID)

	s.logger.Info("Student opted out of study group pool",
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
		zap.Bool("was_waiting", expired),
	)

	return &model.StatusResult{Status: model.GroupStatusOptedOut}, nil
}

// Clear удаляет студента из пула и деактивирует все его пары в курсе
func (s *StudyGroupService) Clear(ctx context.Context, courseID, studentID string) (*model.StatusResult, error) {
	if err := requireIDs(courseID, studentID); err != nil {
		return nil, err
	}

	unlock := s.lockCourse(courseID)
	defer unlock()

	removed, err := s.stores.Pool.Delete(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("delete pool entry: %w", err)
	}

	deactivated, err := s.stores.Matches.DeactivateForStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("deactivate matches: %w", err)
	}

	// Партнёры тоже теряют активную пару
	affected := []string{studentID}
	for _, m := range deactivated {
		affected = append(affected, m.PartnerOf(studentID))
	}
	s.cache.InvalidateStudent(ctx, courseID, affected...)

	s.logger.Info("Student cleared from study groups",
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
		zap.Int64("pool_entries_removed", removed),
		zap.Int("matches_deactivated", len(deactivated)),
	)

	return &model.StatusResult{Status: model.GroupStatusCleared}, nil
}

func requireIDs(courseID, studentID string) error {
	if strings.TrimSpace(courseID) == "" {
		return fmt.Errorf("%w: course id is required", ErrValidation)
	}
	if strings.TrimSpace(studentID) == "" {
		return fmt.Errorf("%w: student id is required", ErrValidation)
	}
	return nil
}
