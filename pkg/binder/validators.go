package binder

import (
	"github.com/go-playground/validator/v10"
	"github.com/zxarchive/zxmirror/pkg/models"
)

// taskTypeValidator accepts only the known task types.
func taskTypeValidator(fl validator.FieldLevel) bool {
	return models.TaskType(fl.Field().String()).Valid()
}

// taskStatusValidator accepts only the known task statuses.
func taskStatusValidator(fl validator.FieldLevel) bool {
	switch models.TaskStatus(fl.Field().String()) {
	case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone, models.TaskStatusFailed:
		return true
	default:
		return false
	}
}
