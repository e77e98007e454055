package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/lingvodoc/lingvodoc/internal/acl"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskACLCrossCheck replays one authorization decision through both paths.
	TaskACLCrossCheck = "acl:crosscheck"
)

// NewACLCrossCheckTask constructs an Asynq task for a sampled decision.
func NewACLCrossCheckTask(check acl.CrossCheck) (*asynq.Task, error) {
	data, err := json.Marshal(check)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskACLCrossCheck, data, asynq.MaxRetry(2)), nil
}
