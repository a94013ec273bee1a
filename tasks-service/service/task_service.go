package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chepyr/go-task-demo/shared/models"
	"github.com/chepyr/go-task-demo/tasks-service/db"
)

// ErrTaskNotFound is returned by Get, Update and Delete when no task has the
// requested id.
var ErrTaskNotFound = errors.New("task not found")

// TaskStore is the record store the service persists tasks in.
// FindByID, DeleteByID and Save of an existing id report a missing row with
// db.ErrNotFound.
type TaskStore interface {
	FindAll(ctx context.Context) ([]*models.Task, error)
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	Save(ctx context.Context, task *models.Task) error
	DeleteByID(ctx context.Context, id int64) error
}

type TaskService struct {
	store  TaskStore
	logger zerolog.Logger
}

func NewTaskService(store TaskStore, logger zerolog.Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
	}
}

// List returns all tasks in store order, or an empty slice.
func (s *TaskService) List(ctx context.Context) ([]models.TaskView, error) {
	tasks, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to list tasks")
		return nil, err
	}
	return models.ToViews(tasks), nil
}

func (s *TaskService) Get(ctx context.Context, id int64) (models.TaskView, error) {
	task, err := s.lookupOrFail(ctx, id)
	if err != nil {
		return models.TaskView{}, err
	}
	return models.ToView(task), nil
}

// Create stores a new task. The id and status of the input are ignored:
// the store assigns the id and every new task starts as TODO.
func (s *TaskService) Create(ctx context.Context, view models.TaskView) (models.TaskView, error) {
	view.ID = 0
	view.Status = models.TaskStatusToDo

	task := models.FromView(view)
	if err := s.store.Save(ctx, task); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to create task")
		return models.TaskView{}, err
	}

	s.logger.Debug().
		Int64("task_id", task.ID).
		Msg("created task")
	return models.ToView(task), nil
}

// Update merges partial into the stored task. Empty name or description and
// an empty status keep the stored value; status transitions are not checked.
func (s *TaskService) Update(ctx context.Context, id int64, partial models.TaskView) (models.TaskView, error) {
	task, err := s.lookupOrFail(ctx, id)
	if err != nil {
		return models.TaskView{}, err
	}

	if partial.Name != "" {
		task.Name = partial.Name
	}
	if partial.Description != "" {
		task.Description = partial.Description
	}
	if partial.Status != "" {
		task.Status = partial.Status
	}

	err = s.store.Save(ctx, task)
	if errors.Is(err, db.ErrNotFound) {
		// removed concurrently after the lookup
		return models.TaskView{}, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to update task")
		return models.TaskView{}, err
	}

	s.logger.Debug().
		Int64("task_id", id).
		Str("status", string(task.Status)).
		Msg("updated task")
	return models.ToView(task), nil
}

func (s *TaskService) Delete(ctx context.Context, id int64) error {
	if _, err := s.lookupOrFail(ctx, id); err != nil {
		return err
	}

	err := s.store.DeleteByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		// removed concurrently after the lookup
		return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to delete task")
		return err
	}

	s.logger.Debug().
		Int64("task_id", id).
		Msg("deleted task")
	return nil
}

// lookupOrFail is the single not-found policy shared by Get, Update and Delete.
func (s *TaskService) lookupOrFail(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to fetch task")
		return nil, err
	}
	return task, nil
}
