package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/chepyr/go-task-demo/shared/models"
)

var taskColumns = []string{"id", "name", "description", "status"}

// TaskRepository is the key-indexed task store.
type TaskRepository struct {
	db      *sql.DB
	builder squirrel.StatementBuilderType
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindAll returns every task ordered by id. The slice is empty, not nil,
// when the table has no rows.
func (r *TaskRepository) FindAll(ctx context.Context) ([]*models.Task, error) {
	query, args, err := r.builder.
		Select(taskColumns...).
		From("tasks").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task := &models.Task{}
		if err := rows.Scan(&task.ID, &task.Name, &task.Description, &task.Status); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// FindByID returns ErrNotFound when no task has the given id.
func (r *TaskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	query, args, err := r.builder.
		Select(taskColumns...).
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	task := &models.Task{}
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&task.ID, &task.Name, &task.Description, &task.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select task %d: %w", id, err)
	}
	return task, nil
}

// Save inserts a task without an id and sets the generated one, or updates
// the row of a task that already has an id. Updating a missing row returns
// ErrNotFound; ids are only ever assigned by the store.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	if !task.Status.Valid() {
		return fmt.Errorf("save task: %w", models.ErrInvalidStatus)
	}
	if task.ID == 0 {
		return r.insert(ctx, task)
	}

	query, args, err := r.builder.
		Update("tasks").
		Set("name", task.Name).
		Set("description", task.Description).
		Set("status", task.Status).
		Where(squirrel.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %d: %w", task.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", task.ID, ErrNotFound)
	}
	return nil
}

func (r *TaskRepository) insert(ctx context.Context, task *models.Task) error {
	query, args, err := r.builder.
		Insert("tasks").
		Columns("name", "description", "status").
		Values(task.Name, task.Description, task.Status).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&task.ID); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// DeleteByID returns ErrNotFound when nothing was deleted.
func (r *TaskRepository) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := r.builder.
		Delete("tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return nil
}
