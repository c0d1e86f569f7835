package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusFailed     TaskStatus = "failed"
)

type TaskType string

const (
	TaskTypeSyncProds         TaskType = "sync_prods"
	TaskTypeSyncReleases      TaskType = "sync_releases"
	TaskTypeCheckProdReleases TaskType = "check_prod_releases"
	TaskTypeCheckReleaseFiles TaskType = "check_release_files"
	TaskTypeDeleteRelease     TaskType = "delete_release"
	TaskTypeDeleteReleaseFile TaskType = "delete_release_file"
	TaskTypeDeleteProd        TaskType = "delete_prod"
	TaskTypeRetryFile         TaskType = "retry_file"
	TaskTypeBuildTitles       TaskType = "build_titles"
	TaskTypeCheckFailedFiles  TaskType = "check_failed_files"
)

// TaskTypes is the closed vocabulary of task types, in declaration order.
var TaskTypes = []TaskType{
	TaskTypeSyncProds,
	TaskTypeSyncReleases,
	TaskTypeCheckProdReleases,
	TaskTypeCheckReleaseFiles,
	TaskTypeDeleteRelease,
	TaskTypeDeleteReleaseFile,
	TaskTypeDeleteProd,
	TaskTypeRetryFile,
	TaskTypeBuildTitles,
	TaskTypeCheckFailedFiles,
}

func (t TaskType) Valid() bool {
	for _, known := range TaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID        string     `bun:",pk" json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Type      TaskType   `json:"type"`
	TargetID  *string    `json:"target_id,omitempty"`
	Status    TaskStatus `json:"status"`
	Attempts  int        `bun:",notnull" json:"attempts"`
	LastError *string    `json:"last_error,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
}
