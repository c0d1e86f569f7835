package tasklogs

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/zxarchive/zxmirror/pkg/models"
)

const maxDataValueLen = 1024

// TaskLogger writes to the process logger and persists a copy of each line
// against the task, so operators can see why a task failed after the fact.
type TaskLogger struct {
	taskID  string
	service *Service
	log     logger.Logger
	ctx     context.Context
}

func (svc *Service) NewTaskLogger(ctx context.Context, taskID string, log logger.Logger) *TaskLogger {
	return &TaskLogger{
		taskID:  taskID,
		service: svc,
		log:     log,
		ctx:     ctx,
	}
}

func (l *TaskLogger) Info(msg string, data logger.Data) {
	l.log.Info(msg, data)
	l.persist(models.TaskLogLevelInfo, msg, data, nil)
}

func (l *TaskLogger) Warn(msg string, data logger.Data) {
	l.log.Warn(msg, data)
	l.persist(models.TaskLogLevelWarn, msg, data, nil)
}

// Error records err together with its stack trace when it carries one.
func (l *TaskLogger) Error(msg string, err error, data logger.Data) {
	l.log.Err(err).Error(msg, data)

	if data == nil {
		data = logger.Data{}
	}
	var stack *string
	if err != nil {
		data["error"] = err.Error()
		if s := stackOf(err); s != "" {
			stack = &s
		}
	}
	l.persist(models.TaskLogLevelError, msg, data, stack)
}

func (l *TaskLogger) persist(level, msg string, data logger.Data, stackTrace *string) {
	var dataStr *string
	if len(data) > 0 {
		trimmed := make(logger.Data, len(data))
		for k, v := range data {
			if s, ok := v.(string); ok && len(s) > maxDataValueLen {
				v = truncateMiddle(s, maxDataValueLen)
			}
			trimmed[k] = v
		}
		if b, err := json.Marshal(trimmed); err == nil {
			s := string(b)
			dataStr = &s
		}
	}

	err := l.service.CreateTaskLog(l.ctx, &models.TaskLog{
		TaskID:     l.taskID,
		Level:      level,
		Message:    msg,
		Data:       dataStr,
		StackTrace: stackTrace,
	})
	if err != nil {
		l.log.Err(err).Warn("failed to persist task log")
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// stackOf returns the innermost pkg/errors stack trace attached to err.
func stackOf(err error) string {
	var st stackTracer
	for e := err; e != nil; e = errors.Unwrap(e) {
		if s, ok := e.(stackTracer); ok {
			st = s
		}
	}
	if st == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%+v", st.StackTrace()))
}

func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	half := (maxLen - 5) / 2
	return s[:half] + " ... " + s[len(s)-half:]
}
