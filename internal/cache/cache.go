// Package cache реализует внешний кэш статусов учебных групп поверх Redis.
// Кэш fail-open: недоступный Redis отключает кэширование, но не ломает запросы.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
)

const statusKeyPrefix = "study_group_status"

// StatusKey ключ статуса студента в курсе
func StatusKey(courseID, studentID string) string {
	return fmt.Sprintf("%s:%s:%s", statusKeyPrefix, courseID, studentID)
}

// CourseStatusPattern glob-шаблон всех ключей статуса курса
func CourseStatusPattern(courseID string) string {
	return fmt.Sprintf("%s:%s:*", statusKeyPrefix, courseID)
}

// Noop кэш-заглушка, когда Redis не настроен
type Noop struct{}

func (Noop) GetStatus(context.Context, string, string) (*model.StatusResult, bool) { return nil, false }

func (Noop) SetStatus(context.Context, string, string, *model.StatusResult, time.Duration) {}

func (Noop) InvalidateStudent(context.Context, string, ...string) {}

func (Noop) InvalidateCourse(context.Context, string) {}
