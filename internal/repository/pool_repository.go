package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/Freeeeeet/studygroups/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const poolColumns = `id, student_id, course_id, concept_ids, status, expires_at, created_at`

// transitionPoolEntrySQL compare-and-swap по статусу: меняет только запись в waiting
const transitionPoolEntrySQL = `
	UPDATE study_group_pool
	SET status = $1
	WHERE student_id = $2 AND course_id = $3 AND status = 'waiting'
`

type PoolRepository struct {
	*base.Repository
}

func NewPoolRepository(pool *pgxpool.Pool) *PoolRepository {
	return &PoolRepository{Repository: base.NewRepository(pool)}
}

// Replace удаляет прежнюю запись студента в курсе и создаёт новую в одной транзакции
func (r *PoolRepository) Replace(ctx context.Context, entry *model.PoolEntry) error {
	err := r.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`DELETE FROM study_group_pool WHERE student_id = $1 AND course_id = $2`,
			entry.StudentID, entry.CourseID,
		)
		if err != nil {
			return fmt.Errorf("delete previous pool entry: %w", err)
		}

		query := `
			INSERT INTO study_group_pool (id, student_id, course_id, concept_ids, status, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		_, err = tx.Exec(ctx, query,
			entry.ID,
			entry.StudentID,
			entry.CourseID,
			entry.ConceptIDs,
			entry.Status,
			entry.ExpiresAt,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert pool entry: %w", err)
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("replace pool entry: %w", err)
	}

	return nil
}

// ListWaiting получает непросроченных ожидающих студентов курса в порядке входа в пул
func (r *PoolRepository) ListWaiting(ctx context.Context, courseID, excludeStudentID string, now time.Time) ([]*model.PoolEntry, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM study_group_pool
		WHERE course_id = $1 AND status = 'waiting' AND student_id <> $2 AND expires_at > $3
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.Query(ctx, query, courseID, excludeStudentID, now)
	if err != nil {
		return nil, fmt.Errorf("list waiting pool entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.PoolEntry
	for rows.Next() {
		entry, err := scanPoolEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool entries: %w", err)
	}

	return entries, nil
}

// GetWaiting получает запись студента в статусе waiting
func (r *PoolRepository) GetWaiting(ctx context.Context, studentID, courseID string) (*model.PoolEntry, error) {
	query := `
		SELECT ` + poolColumns + `
		FROM study_group_pool
		WHERE student_id = $1 AND course_id = $2 AND status = 'waiting'
		LIMIT 1
	`

	entry, err := scanPoolEntry(r.QueryRow(ctx, query, studentID, courseID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get waiting pool entry: %w", err)
	}

	return entry, nil
}

// Expire переводит запись waiting -> expired
func (r *PoolRepository) Expire(ctx context.Context, studentID, courseID string) (bool, error) {
	return r.transition(ctx, studentID, courseID, model.PoolStatusExpired)
}

func (r *PoolRepository) transition(ctx context.Context, studentID, courseID string, status model.PoolStatus) (bool, error) {
	affected, err := r.ExecAffected(ctx, transitionPoolEntrySQL, status, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("update pool entry status to %s: %w", status, err)
	}

	return affected > 0, nil
}

// Delete удаляет все записи студента в пуле курса
func (r *PoolRepository) Delete(ctx context.Context, studentID, courseID string) (int64, error) {
	affected, err := r.ExecAffected(ctx,
		`DELETE FROM study_group_pool WHERE student_id = $1 AND course_id = $2`,
		studentID, courseID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete pool entry: %w", err)
	}

	return affected, nil
}

// ExpireStale переводит в expired все ожидающие записи с истёкшим сроком
func (r *PoolRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	affected, err := r.ExecAffected(ctx,
		`UPDATE study_group_pool SET status = 'expired' WHERE status = 'waiting' AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("expire stale pool entries: %w", err)
	}

	return affected, nil
}

func scanPoolEntry(row pgx.Row) (*model.PoolEntry, error) {
	var entry model.PoolEntry
	err := row.Scan(
		&entry.ID,
		&entry.StudentID,
		&entry.CourseID,
		&entry.ConceptIDs,
		&entry.Status,
		&entry.ExpiresAt,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
