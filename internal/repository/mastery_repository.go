package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studygroups/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MasteryRepository struct {
	*base.Repository
}

func NewMasteryRepository(pool *pgxpool.Pool) *MasteryRepository {
	return &MasteryRepository{Repository: base.NewRepository(pool)}
}

// Confidences получает уверенность студента по концептам. Концептов без записи в результате нет.
func (r *MasteryRepository) Confidences(ctx context.Context, studentID string, conceptIDs []string) (map[string]float64, error) {
	mastery := make(map[string]float64, len(conceptIDs))
	if len(conceptIDs) == 0 {
		return mastery, nil
	}

	query := `
		SELECT concept_id, confidence
		FROM student_mastery
		WHERE student_id = $1 AND concept_id = ANY($2)
	`

	rows, err := r.Query(ctx, query, studentID, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			conceptID  string
			confidence float64
		)
		if err := rows.Scan(&conceptID, &confidence); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		mastery[conceptID] = confidence
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get mastery: %w", err)
	}

	return mastery, nil
}
