package handlers

import "github.com/chepyr/go-task-demo/shared/models"

// validateNewTask returns one message per violated constraint, in field order.
func validateNewTask(view models.TaskView) []string {
	var problems []string
	if view.Name == "" {
		problems = append(problems, "name must not be empty")
	}
	if view.Description == "" {
		problems = append(problems, "description must not be empty")
	}
	return problems
}
