package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidStatus = errors.New("invalid task status")

type TaskStatus string

const (
	TaskStatusToDo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// TaskStatuses lists every accepted status in declaration order.
var TaskStatuses = []TaskStatus{TaskStatusToDo, TaskStatusInProgress, TaskStatusDone}

// ParseTaskStatus converts various user inputs to a standard status value.
func ParseTaskStatus(s string) (TaskStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch TaskStatus(normalized) {
	case TaskStatusToDo, "TO_DO":
		return TaskStatusToDo, nil
	case TaskStatusInProgress, "INPROGRESS":
		return TaskStatusInProgress, nil
	case TaskStatusDone:
		return TaskStatusDone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts null or "" (both leave the status unset) or any
// spelling ParseTaskStatus understands.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, data)
	}
	if raw == "" {
		return nil
	}
	status, err := ParseTaskStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Task is the persisted record. ID is zero until the store assigns one.
type Task struct {
	ID          int64
	Name        string
	Description string
	Status      TaskStatus
}

// TaskView is the wire representation of a task. Every field is optional on
// input; an empty Status means "not supplied".
type TaskView struct {
	ID          int64      `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status,omitempty"`
}
