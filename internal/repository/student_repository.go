package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/Freeeeeet/studygroups/internal/repository/base"
	"github.com/jackc/pgx/v5/pgxpool"
)

type StudentRepository struct {
	*base.Repository
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{Repository: base.NewRepository(pool)}
}

// GetByID получает студента по ID
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*model.Student, error) {
	query := `
		SELECT id, course_id, name, email, telegram_chat_id
		FROM students
		WHERE id = $1
	`

	var student model.Student
	err := r.QueryRow(ctx, query, id).Scan(
		&student.ID,
		&student.CourseID,
		&student.Name,
		&student.Email,
		&student.TelegramChatID,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get student by id: %w", err)
	}

	return &student, nil
}

// ListCoursemates получает до limit других студентов курса
func (r *StudentRepository) ListCoursemates(ctx context.Context, courseID, excludeStudentID string, limit int) ([]*model.Student, error) {
	query := `
		SELECT id, course_id, name, email, telegram_chat_id
		FROM students
		WHERE course_id = $1 AND id <> $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.Query(ctx, query, courseID, excludeStudentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list coursemates: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		var student model.Student
		err := rows.Scan(
			&student.ID,
			&student.CourseID,
			&student.Name,
			&student.Email,
			&student.TelegramChatID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, &student)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coursemates: %w", err)
	}

	return students, nil
}
