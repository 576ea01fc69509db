package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	matchedStatusTTL = 30 * time.Second
	otherStatusTTL   = 10 * time.Second
)

// StatusService отвечает "в паре / жду / ничего" для студента. Только чтение.
type StatusService struct {
	stores Stores
	cache  StatusCache
	now    func() time.Time
	logger *zap.Logger
}

func NewStatusService(stores Stores, cache StatusCache, logger *zap.Logger) *StatusService {
	return &StatusService{
		stores: stores,
		cache:  cache,
		now:    time.Now,
		logger: logger,
	}
}

// Status возвращает текущий статус студента в курсе
func (s *StatusService) Status(ctx context.Context, courseID, studentID string) (*model.StatusResult, error) {
	if err := requireIDs(courseID, studentID); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.GetStatus(ctx, courseID, studentID); ok {
		return cached, nil
	}

	result, err := s.resolve(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	ttl := otherStatusTTL
	if result.Status == model.GroupStatusMatched {
		ttl = matchedStatusTTL
	}
	s.cache.SetStatus(ctx, courseID, studentID, result, ttl)

	return result, nil
}

func (s *StatusService) resolve(ctx context.Context, courseID, studentID string) (*model.StatusResult, error) {
	match, err := s.stores.Matches.GetActiveForStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("get active match: %w", err)
	}

	if match != nil {
		if !match.Involves(studentID) {
			return nil, fmt.Errorf("active match %s does not involve student %s", match.ID, studentID)
		}
		return s.matched(ctx, match, studentID)
	}

	entry, err := s.stores.Pool.GetWaiting(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get waiting pool entry: %w", err)
	}

	// Просроченная запись в подборе не участвует, поэтому и ожиданием не считается
	if entry == nil || entry.IsExpired(s.now()) {
		return &model.StatusResult{Status: model.GroupStatusNone}, nil
	}

	labels, err := s.stores.Concepts.Labels(ctx, entry.ConceptIDs)
	if err != nil {
		return nil, fmt.Errorf("get concept labels: %w", err)
	}

	expiresAt := entry.ExpiresAt
	return &model.StatusResult{
		Status:        model.GroupStatusWaiting,
		PoolID:        entry.ID,
		ConceptLabels: labels,
		ExpiresAt:     &expiresAt,
	}, nil
}

func (s *StatusService) matched(ctx context.Context, match *model.Match, studentID string) (*model.StatusResult, error) {
	partnerID := match.PartnerOf(studentID)

	var (
		partner *model.Student
		labels  []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if partner, err = s.stores.Students.GetByID(gctx, partnerID); err != nil {
			return fmt.Errorf("get partner: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if labels, err = s.stores.Concepts.Labels(gctx, match.ConceptIDs); err != nil {
			return fmt.Errorf("get concept labels: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if partner == nil {
		s.logger.Warn("Partner profile not found",
			zap.String("match_id", match.ID),
			zap.String("partner_id", partnerID),
		)
		partner = &model.Student{ID: partnerID}
	}

	score := match.ComplementarityScore
	createdAt := match.CreatedAt
	return &model.StatusResult{
		Status:               model.GroupStatusMatched,
		MatchID:              match.ID,
		Partner:              partner,
		ConceptLabels:        labels,
		MeetingLink:          match.MeetingLink,
		ComplementarityScore: &score,
		CreatedAt:            &createdAt,
	}, nil
}
