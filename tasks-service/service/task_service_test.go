package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chepyr/go-task-demo/shared/models"
	"github.com/chepyr/go-task-demo/tasks-service/db"
)

// fakeStore is an in-memory TaskStore that counts mutations.
type fakeStore struct {
	tasks   map[int64]models.Task
	order   []int64
	nextID  int64
	saves   int
	deletes int
	err     error
	// vanish removes a task right after FindByID returns it, as a
	// concurrent delete would.
	vanish bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]models.Task), nextID: 1}
}

func (f *fakeStore) FindAll(ctx context.Context) ([]*models.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	tasks := make([]*models.Task, 0, len(f.order))
	for _, id := range f.order {
		task := f.tasks[id]
		tasks = append(tasks, &task)
	}
	return tasks, nil
}

func (f *fakeStore) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d: %w", id, db.ErrNotFound)
	}
	if f.vanish {
		delete(f.tasks, id)
	}
	return &task, nil
}

func (f *fakeStore) Save(ctx context.Context, task *models.Task) error {
	if f.err != nil {
		return f.err
	}
	f.saves++
	if task.ID == 0 {
		task.ID = f.nextID
		f.nextID++
		f.order = append(f.order, task.ID)
	} else if _, exists := f.tasks[task.ID]; !exists {
		return fmt.Errorf("task %d: %w", task.ID, db.ErrNotFound)
	}
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deletes++
	if _, ok := f.tasks[id]; !ok {
		return fmt.Errorf("task %d: %w", id, db.ErrNotFound)
	}
	delete(f.tasks, id)
	for i, existing := range f.order {
		if existing == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeStore) seed(task models.Task) int64 {
	_ = f.Save(context.Background(), &task)
	f.saves = 0
	return task.ID
}

func fullTask() models.Task {
	return models.Task{Name: "My new task", Description: "Task's description", Status: models.TaskStatusToDo}
}

func newTestService(store TaskStore) *TaskService {
	return NewTaskService(store, zerolog.Nop())
}

func TestTaskService_List(t *testing.T) {
	store := newFakeStore()
	first := store.seed(fullTask())
	second := store.seed(fullTask())

	views, err := newTestService(store).List(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first, views[0].ID)
	assert.Equal(t, second, views[1].ID)
	for _, view := range views {
		assert.Equal(t, "My new task", view.Name)
		assert.Equal(t, "Task's description", view.Description)
		assert.Equal(t, models.TaskStatusToDo, view.Status)
	}
}

func TestTaskService_List_Empty(t *testing.T) {
	views, err := newTestService(newFakeStore()).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestTaskService_Get(t *testing.T) {
	store := newFakeStore()
	id := store.seed(fullTask())

	view, err := newTestService(store).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskView{ID: id, Name: "My new task", Description: "Task's description", Status: models.TaskStatusToDo}, view)
}

func TestTaskService_Create_ForcesTodo(t *testing.T) {
	for _, status := range []models.TaskStatus{"", models.TaskStatusToDo, models.TaskStatusInProgress, models.TaskStatusDone} {
		t.Run(string(status), func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store)

			created, err := svc.Create(context.Background(), models.TaskView{
				ID:          500,
				Name:        "My new task",
				Description: "Task's description",
				Status:      status,
			})
			require.NoError(t, err)
			assert.Equal(t, models.TaskStatusToDo, created.Status)
			assert.Equal(t, int64(1), created.ID, "id is assigned by the store")
			assert.Equal(t, 1, store.saves)

			fetched, err := svc.Get(context.Background(), created.ID)
			require.NoError(t, err)
			assert.Equal(t, created, fetched)
		})
	}
}

func TestTaskService_Update_OverwritesAllFields(t *testing.T) {
	store := newFakeStore()
	id := store.seed(fullTask())

	updated, err := newTestService(store).Update(context.Background(), id, models.TaskView{
		Name:        "Updated name",
		Description: "Updated description",
		Status:      models.TaskStatusDone,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskView{ID: id, Name: "Updated name", Description: "Updated description", Status: models.TaskStatusDone}, updated)
	assert.Equal(t, models.Task{ID: id, Name: "Updated name", Description: "Updated description", Status: models.TaskStatusDone}, store.tasks[id])
}

func TestTaskService_Update_MergeSemantics(t *testing.T) {
	tests := []struct {
		name     string
		partial  models.TaskView
		expected models.Task
	}{
		{
			name:     "empty partial leaves record unchanged",
			partial:  models.TaskView{},
			expected: fullTask(),
		},
		{
			name:     "empty name is treated as unset",
			partial:  models.TaskView{Name: ""},
			expected: fullTask(),
		},
		{
			name:    "description only",
			partial: models.TaskView{Description: "Updated description"},
			expected: models.Task{
				Name: "My new task", Description: "Updated description", Status: models.TaskStatusToDo,
			},
		},
		{
			name:    "status only, any transition allowed",
			partial: models.TaskView{Status: models.TaskStatusInProgress},
			expected: models.Task{
				Name: "My new task", Description: "Task's description", Status: models.TaskStatusInProgress,
			},
		},
		{
			name:    "partial id is ignored",
			partial: models.TaskView{ID: 77, Name: "Renamed"},
			expected: models.Task{
				Name: "Renamed", Description: "Task's description", Status: models.TaskStatusToDo,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			id := store.seed(fullTask())
			tt.expected.ID = id

			updated, err := newTestService(store).Update(context.Background(), id, tt.partial)
			require.NoError(t, err)
			assert.Equal(t, models.ToView(&tt.expected), updated)
			assert.Equal(t, tt.expected, store.tasks[id])
		})
	}
}

func TestTaskService_Update_DoneBackToTodo(t *testing.T) {
	store := newFakeStore()
	task := fullTask()
	task.Status = models.TaskStatusDone
	id := store.seed(task)

	updated, err := newTestService(store).Update(context.Background(), id, models.TaskView{Status: models.TaskStatusToDo})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusToDo, updated.Status)
}

func TestTaskService_Delete(t *testing.T) {
	store := newFakeStore()
	id := store.seed(fullTask())
	svc := newTestService(store)

	require.NoError(t, svc.Delete(context.Background(), id))
	assert.Equal(t, 1, store.deletes)

	_, err := svc.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

// Every single-record operation reports a missing id the same way and
// leaves the store untouched.
func TestTaskService_NotFoundIsUniform(t *testing.T) {
	const missing = int64(404)

	ops := map[string]func(svc *TaskService) error{
		"get": func(svc *TaskService) error {
			_, err := svc.Get(context.Background(), missing)
			return err
		},
		"update": func(svc *TaskService) error {
			_, err := svc.Update(context.Background(), missing, models.TaskView{Name: "x", Status: models.TaskStatusDone})
			return err
		},
		"delete": func(svc *TaskService) error {
			return svc.Delete(context.Background(), missing)
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			store := newFakeStore()
			store.seed(fullTask())

			err := op(newTestService(store))
			assert.ErrorIs(t, err, ErrTaskNotFound)
			assert.NotErrorIs(t, err, db.ErrNotFound)
			assert.Equal(t, 0, store.saves)
			assert.Equal(t, 0, store.deletes)
			assert.Len(t, store.tasks, 1)
		})
	}
}

func TestTaskService_DeletedDuringOperation(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		store := newFakeStore()
		id := store.seed(fullTask())
		store.vanish = true

		_, err := newTestService(store).Update(ctx, id, models.TaskView{Name: "late"})
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.NotErrorIs(t, err, db.ErrNotFound)
		assert.Empty(t, store.tasks, "update must not re-create the task")
	})

	t.Run("delete", func(t *testing.T) {
		store := newFakeStore()
		id := store.seed(fullTask())
		store.vanish = true

		err := newTestService(store).Delete(ctx, id)
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.NotErrorIs(t, err, db.ErrNotFound)
	})
}

func TestTaskService_StoreFailurePropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := newFakeStore()
	store.err = storeErr
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.List(ctx)
	assert.ErrorIs(t, err, storeErr)

	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrTaskNotFound)

	_, err = svc.Create(ctx, models.TaskView{Name: "n", Description: "d"})
	assert.ErrorIs(t, err, storeErr)

	_, err = svc.Update(ctx, 1, models.TaskView{})
	assert.ErrorIs(t, err, storeErr)

	err = svc.Delete(ctx, 1)
	assert.ErrorIs(t, err, storeErr)
}

func TestTaskService_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Connect(ctx, "sqlite3", ":memory:", db.PoolConfig{})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, db.Migrate(ctx, conn, "sqlite3"))

	svc := newTestService(db.NewTaskRepository(conn))

	created, err := svc.Create(ctx, models.TaskView{Name: "My new task", Description: "Task's description", Status: models.TaskStatusDone})
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusToDo, created.Status)

	fetched, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, fetched)

	updated, err := svc.Update(ctx, created.ID, models.TaskView{Name: "", Status: models.TaskStatusInProgress})
	require.NoError(t, err)
	assert.Equal(t, "My new task", updated.Name)
	assert.Equal(t, models.TaskStatusInProgress, updated.Status)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	views, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, views)
}
