package tasks

type EnqueueTaskPayload struct {
	Type     string  `json:"type" validate:"required,tasktype"`
	TargetID *string `json:"target_id,omitempty" validate:"omitempty,numeric"`
}

type ListTasksQuery struct {
	Limit  int      `query:"limit" json:"limit,omitempty" default:"25" validate:"min=1,max=500"`
	Offset int      `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Status []string `query:"status" json:"status,omitempty" validate:"dive,taskstatus"`
	Type   *string  `query:"type" json:"type,omitempty" validate:"omitempty,tasktype"`
}
