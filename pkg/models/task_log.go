package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	TaskLogLevelInfo  = "info"
	TaskLogLevelWarn  = "warn"
	TaskLogLevelError = "error"
)

type TaskLog struct {
	bun.BaseModel `bun:"table:task_logs,alias:tl"`

	ID         int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	TaskID     string    `json:"task_id"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	Data       *string   `json:"data,omitempty"`
	StackTrace *string   `json:"stack_trace,omitempty"`
}
