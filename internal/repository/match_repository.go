package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/Freeeeeet/studygroups/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const matchColumns = `id, course_id, student1_id, student2_id, concept_ids, meeting_link, complementarity_score, status, created_at`

type MatchRepository struct {
	*base.Repository
}

func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{Repository: base.NewRepository(pool)}
}

// Commit в одной транзакции забирает запись партнёра в пуле, сохраняет пару
// и отмечает инициатора matched. Ошибка на любом шаге откатывает всё.
func (r *MatchRepository) Commit(ctx context.Context, match *model.Match, initiatorID string, claimPartner bool) (model.CommitOutcome, error) {
	var outcome model.CommitOutcome

	err := r.InTx(ctx, func(tx pgx.Tx) error {
		if claimPartner {
			tag, err := tx.Exec(ctx, transitionPoolEntrySQL,
				model.PoolStatusMatched, match.PartnerOf(initiatorID), match.CourseID,
			)
			if err != nil {
				return fmt.Errorf("claim partner pool entry: %w", err)
			}
			if tag.RowsAffected() == 0 {
				outcome = model.CommitClaimLost
				return nil
			}
		}

		created, err := insertMatch(ctx, tx, match)
		if err != nil {
			return err
		}

		outcome = model.CommitReused
		if created {
			outcome = model.CommitCreated
		}

		// У инициатора записи в пуле может и не быть
		if _, err := tx.Exec(ctx, transitionPoolEntrySQL, model.PoolStatusMatched, initiatorID, match.CourseID); err != nil {
			return fmt.Errorf("mark initiator pool entry matched: %w", err)
		}
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("commit match: %w", err)
	}

	return outcome, nil
}

// insertMatch создаёт пару. Если активная пара тех же студентов уже существует,
// match заполняется ею и возвращается false.
func insertMatch(ctx context.Context, q base.RowQuerier, match *model.Match) (bool, error) {
	query := `
		INSERT INTO study_group_matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (course_id, student1_id, student2_id) WHERE status = 'active' DO NOTHING
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query,
		match.ID,
		match.CourseID,
		match.Student1ID,
		match.Student2ID,
		match.ConceptIDs,
		match.MeetingLink,
		match.ComplementarityScore,
		match.Status,
		match.CreatedAt,
	).Scan(&match.CreatedAt)

	if err == nil {
		return true, nil
	}

	if !base.IsNotFound(err) {
		return false, fmt.Errorf("insert match: %w", err)
	}

	// Конфликт по активной паре - возвращаем существующую
	existing, err := getActivePair(ctx, q, match.CourseID, match.Student1ID, match.Student2ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("insert match: active pair conflict but no row found")
	}

	*match = *existing
	return false, nil
}

func getActivePair(ctx context.Context, q base.RowQuerier, courseID, student1ID, student2ID string) (*model.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM study_group_matches
		WHERE course_id = $1 AND student1_id = $2 AND student2_id = $3 AND status = 'active'
		LIMIT 1
	`

	match, err := scanMatch(q.QueryRow(ctx, query, courseID, student1ID, student2ID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active pair: %w", err)
	}

	return match, nil
}

// GetActiveForStudent получает активную пару студента (в любой из двух позиций)
func (r *MatchRepository) GetActiveForStudent(ctx context.Context, courseID, studentID string) (*model.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM study_group_matches
		WHERE course_id = $1 AND status = 'active' AND (student1_id = $2 OR student2_id = $2)
		ORDER BY created_at DESC
		LIMIT 1
	`

	match, err := scanMatch(r.QueryRow(ctx, query, courseID, studentID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active match for student: %w", err)
	}

	return match, nil
}

// DeactivateForStudent переводит все активные пары студента в inactive
func (r *MatchRepository) DeactivateForStudent(ctx context.Context, courseID, studentID string) ([]*model.Match, error) {
	query := `
		UPDATE study_group_matches
		SET status = 'inactive'
		WHERE course_id = $1 AND status = 'active' AND (student1_id = $2 OR student2_id = $2)
		RETURNING ` + matchColumns

	rows, err := r.Query(ctx, query, courseID, studentID)
	if err != nil {
		return nil, fmt.Errorf("deactivate matches: %w", err)
	}
	defer rows.Close()

	var matches []*model.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deactivate matches: %w", err)
	}

	return matches, nil
}

func scanMatch(row pgx.Row) (*model.Match, error) {
	var match model.Match
	err := row.Scan(
		&match.ID,
		&match.CourseID,
		&match.Student1ID,
		&match.Student2ID,
		&match.ConceptIDs,
		&match.MeetingLink,
		&match.ComplementarityScore,
		&match.Status,
		&match.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &match, nil
}
