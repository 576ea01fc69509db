package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studygroups/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConceptRepository struct {
	*base.Repository
}

func NewConceptRepository(pool *pgxpool.Pool) *ConceptRepository {
	return &ConceptRepository{Repository: base.NewRepository(pool)}
}

// CountInCourse считает сколько концептов из списка принадлежат курсу
func (r *ConceptRepository) CountInCourse(ctx context.Context, courseID string, conceptIDs []string) (int, error) {
	query := `
		SELECT count(*)
		FROM concept_nodes
		WHERE course_id = $1 AND id = ANY($2)
	`

	var count int
	if err := r.QueryRow(ctx, query, courseID, conceptIDs).Scan(&count); err != nil {
		return 0, fmt.Errorf("count course concepts: %w", err)
	}

	return count, nil
}

// Labels получает названия концептов в порядке conceptIDs
func (r *ConceptRepository) Labels(ctx context.Context, conceptIDs []string) ([]string, error) {
	if len(conceptIDs) == 0 {
		return []string{}, nil
	}

	query := `
		SELECT label
		FROM concept_nodes
		WHERE id = ANY($1::text[])
		ORDER BY array_position($1::text[], id)
	`

	rows, err := r.Query(ctx, query, conceptIDs)
	if err != nil {
		return nil, fmt.Errorf("get concept labels: %w", err)
	}
	defer rows.Close()

	labels := make([]string, 0, len(conceptIDs))
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan concept label: %w", err)
		}
		labels = append(labels, label)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get concept labels: %w", err)
	}

	return labels, nil
}
