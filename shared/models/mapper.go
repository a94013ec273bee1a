package models

// ToView copies a stored task into its wire shape.
func ToView(task *Task) TaskView {
	return TaskView{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		Status:      task.Status,
	}
}

// ToViews never returns nil so an empty list encodes as [].
func ToViews(tasks []*Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, ToView(task))
	}
	return views
}

// FromView copies a wire task into the storage shape.
func FromView(view TaskView) *Task {
	return &Task{
		ID:          view.ID,
		Name:        view.Name,
		Description: view.Description,
		Status:      view.Status,
	}
}
