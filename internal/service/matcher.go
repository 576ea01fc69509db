package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	fallbackAnyScore     = 0.5 // оценка пары со случайным одногруппником при пустом пуле
	fallbackAnyConcepts  = 3
	fallbackPoolConcepts = 2
	coursemateScanLimit  = 10
	masteryFanout        = 8
)

type candidate struct {
	entry  *model.PoolEntry
	shared []string
	score  float64
}

// Matcher подбирает пару только что вошедшему в пул студенту
type Matcher struct {
	stores   Stores
	cache    StatusCache
	notifier MatchNotifier
	links    *MeetingLinks
	rnd      RandomSource
	now      func() time.Time
	logger   *zap.Logger
}

func NewMatcher(
	stores Stores,
	cache StatusCache,
	notifier MatchNotifier,
	links *MeetingLinks,
	rnd RandomSource,
	logger *zap.Logger,
) *Matcher {
	return &Matcher{
		stores:   stores,
		cache:    cache,
		notifier: notifier,
		links:    links,
		rnd:      rnd,
		now:      time.Now,
		logger:   logger,
	}
}

// FindMatch ищет пару для студента. Возвращает nil, если в курсе нет
// ни одного другого студента; в этом случае хранилища не изменяются.
func (m *Matcher) FindMatch(ctx context.Context, studentID, courseID string, conceptIDs []string) (*model.MatchResult, error) {
	myMastery, err := m.stores.Mastery.Confidences(ctx, studentID, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("load own mastery: %w", err)
	}

	entries, err := m.stores.Pool.ListWaiting(ctx, courseID, studentID, m.now())
	if err != nil {
		return nil, fmt.Errorf("list waiting pool entries: %w", err)
	}

	// Пул пуст - сразу сводим с любым одногруппником
	if len(entries) == 0 {
		return m.matchAnyCoursemate(ctx, studentID, courseID, conceptIDs)
	}

	ranked, err := m.rankCandidates(ctx, myMastery, conceptIDs, entries)
	if err != nil {
		return nil, err
	}

	lost := make(map[string]bool)
	for _, c := range ranked {
		result, err := m.claimAndCommit(ctx, studentID, courseID, c)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		lost[c.entry.StudentID] = true
	}

	// Никто не прошёл порог: берём случайного из всего пула
	remaining := make([]*model.PoolEntry, 0, len(entries))
	for _, e := range entries {
		if !lost[e.StudentID] {
			remaining = append(remaining, e)
		}
	}

	for len(remaining) > 0 {
		i := m.rnd.Intn(len(remaining))
		entry := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)

		shared := intersect(conceptIDs, entry.ConceptIDs)
		if len(shared) == 0 {
			shared = head(conceptIDs, fallbackPoolConcepts)
		}

		result, err := m.claimAndCommit(ctx, studentID, courseID, candidate{
			entry:  entry,
			shared: shared,
			score:  MinComplementarity,
		})
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
	}

	// Всех кандидатов забрали параллельные opt-in
	return m.matchAnyCoursemate(ctx, studentID, courseID, conceptIDs)
}

// rankCandidates оставляет кандидатов с общими концептами и оценкой не ниже порога,
// отсортированных по убыванию оценки (при равенстве - в порядке пула)
func (m *Matcher) rankCandidates(
	ctx context.Context,
	myMastery map[string]float64,
	conceptIDs []string,
	entries []*model.PoolEntry,
) ([]candidate, error) {
	scored := make([]*candidate, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(masteryFanout)

	for i, entry := range entries {
		shared := intersect(conceptIDs, entry.ConceptIDs)
		if len(shared) == 0 {
			continue
		}

		g.Go(func() error {
			theirs, err := m.stores.Mastery.Confidences(gctx, entry.StudentID, shared)
			if err != nil {
				return fmt.Errorf("load candidate mastery: %w", err)
			}
			scored[i] = &candidate{
				entry:  entry,
				shared: shared,
				score:  Complementarity(myMastery, theirs, shared),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ranked []candidate
	for _, c := range scored {
		if c != nil && c.score >= MinComplementarity {
			ranked = append(ranked, *c)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	return ranked, nil
}

// claimAndCommit забирает запись кандидата (waiting -> matched) и создаёт пару
// одной транзакцией. nil без ошибки - запись уже забрал кто-то другой.
func (m *Matcher) claimAndCommit(ctx context.Context, studentID, courseID string, c candidate) (*model.MatchResult, error) {
	return m.commit(ctx, studentID, courseID, c.entry.StudentID, c.shared, c.score, true)
}

// matchAnyCoursemate сводит студента со случайным одногруппником, даже если тот не в пуле
func (m *Matcher) matchAnyCoursemate(ctx context.Context, studentID, courseID string, conceptIDs []string) (*model.MatchResult, error) {
	mates, err := m.stores.Students.ListCoursemates(ctx, courseID, studentID, coursemateScanLimit)
	if err != nil {
		return nil, fmt.Errorf("list coursemates: %w", err)
	}

	if len(mates) == 0 {
		m.logger.Info("No other students in course",
			zap.String("course_id", courseID),
			zap.String("student_id", studentID),
		)
		return nil, nil
	}

	partner := mates[m.rnd.Intn(len(mates))]

	return m.commit(ctx, studentID, courseID, partner.ID, head(conceptIDs, fallbackAnyConcepts), fallbackAnyScore, false)
}

// commit сохраняет пару в каноническом порядке вместе с переходами записей пула,
// сбрасывает кэш статусов курса и оповещает участников. При claimPartner
// запись партнёра в пуле обязана быть в waiting, иначе возвращается nil.
func (m *Matcher) commit(
	ctx context.Context,
	studentID, courseID, partnerID string,
	shared []string,
	score float64,
	claimPartner bool,
) (*model.MatchResult, error) {
	s1, s2 := model.CanonicalPair(studentID, partnerID)

	match := &model.Match{
		ID:                   uuid.NewString(),
		CourseID:             courseID,
		Student1ID:           s1,
		Student2ID:           s2,
		ConceptIDs:           shared,
		MeetingLink:          m.links.Generate(),
		ComplementarityScore: score,
		Status:               model.MatchStatusActive,
		CreatedAt:            m.now(),
	}

	outcome, err := m.stores.Matches.Commit(ctx, match, studentID, claimPartner)
	if err != nil {
		return nil, fmt.Errorf("commit match: %w", err)
	}

	if outcome == model.CommitClaimLost {
		m.logger.Info("Pool entry already claimed, trying next candidate",
			zap.String("course_id", courseID),
			zap.String("candidate_id", partnerID),
		)
		return nil, nil
	}
	created := outcome == model.CommitCreated

	m.cache.InvalidateCourse(ctx, courseID)

	var (
		self, partner *model.Student
		labels        []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if self, err = m.stores.Students.GetByID(gctx, studentID); err != nil {
			return fmt.Errorf("get student: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if partner, err = m.stores.Students.GetByID(gctx, partnerID); err != nil {
			return fmt.Errorf("get partner: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if labels, err = m.stores.Concepts.Labels(gctx, match.ConceptIDs); err != nil {
			return fmt.Errorf("get concept labels: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if partner == nil {
		partner = &model.Student{ID: partnerID}
	}

	if created {
		m.notifier.NotifyMatch(ctx, match, self, partner)
	}

	m.logger.Info("Study group match created",
		zap.String("match_id", match.ID),
		zap.String("course_id", courseID),
		zap.String("student1_id", match.Student1ID),
		zap.String("student2_id", match.Student2ID),
		zap.Float64("score", match.ComplementarityScore),
		zap.Bool("reused", !created),
	)

	return &model.MatchResult{
		MatchID:              match.ID,
		Partner:              partner,
		ConceptIDs:           match.ConceptIDs,
		ConceptLabels:        labels,
		MeetingLink:          match.MeetingLink,
		ComplementarityScore: match.ComplementarityScore,
	}, nil
}
