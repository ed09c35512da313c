// Package scheduler holds the asynq task definitions, the enqueue client and
// the worker that drains the queue, plus the periodic maintenance sweeps.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskWelcomeMessage = "leads.welcome"

type WelcomeMessagePayload struct {
	LeadID string `json:"leadId"`
}

func NewWelcomeMessageTask(payload WelcomeMessagePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWelcomeMessage, data), nil
}

func ParseWelcomeMessagePayload(task *asynq.Task) (WelcomeMessagePayload, error) {
	var payload WelcomeMessagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WelcomeMessagePayload{}, err
	}
	return payload, nil
}
