package storage

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bada/internal/entity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTask(t *testing.T, s *Store, task entity.Task) {
	t.Helper()
	_, err := s.InsertTask(task)
	require.NoError(t, err)
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todo.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	cats, err := s.FetchCategories()
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "Work", cats[0].Name)
	assert.True(t, base.Equal(cats[0].Created))
}

func TestInsertAndFetch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c2", Name: "Home", Created: base.Add(time.Second)}))
	insertTask(t, s, entity.Task{ID: "t1", Name: "Report", Created: base.Add(2 * time.Second), Category: entity.CategoryRef{ID: "c1"}})
	insertTask(t, s, entity.Task{ID: "t2", Name: "Dishes", Done: true, Created: base.Add(3 * time.Second), Category: entity.CategoryRef{ID: "c2"}})

	tasks, err := s.FetchTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "Work", tasks[0].Category.Name)
	assert.False(t, tasks[0].Done)
	assert.True(t, tasks[1].Done)

	cats, err := s.FetchCategories()
	require.NoError(t, err)
	require.Len(t, cats, 2)
	require.Len(t, cats[0].Tasks, 1)
	assert.Equal(t, "t1", cats[0].Tasks[0].ID)
	assert.Equal(t, "t2", cats[1].Tasks[0].ID)

	n, err := s.CountCategories()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertTaskUnknownCategory(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertTask(entity.Task{ID: "t1", Name: "x", Created: base, Category: entity.CategoryRef{ID: "missing"}})
	assert.ErrorIs(t, err, ErrNotFound)

	tasks, err := s.FetchTasks()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpdateTask(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c2", Name: "Home", Created: base}))
	insertTask(t, s, entity.Task{ID: "t1", Name: "Report", Created: base, Category: entity.CategoryRef{ID: "c1"}})

	name, done, cat := "Final report", true, "c2"
	owner, err := s.UpdateTask("t1", entity.TaskPatch{Name: &name, Done: &done, CategoryID: &cat})
	require.NoError(t, err)
	assert.Equal(t, entity.CategoryRef{ID: "c2", Name: "Home"}, owner)

	tasks, err := s.FetchTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Final report", tasks[0].Name)
	assert.True(t, tasks[0].Done)
	assert.Equal(t, "Home", tasks[0].Category.Name)
	assert.True(t, base.Equal(tasks[0].Created))

	missing := "nope"
	_, err = s.UpdateTask("t1", entity.TaskPatch{CategoryID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateTask("t404", entity.TaskPatch{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)

	owner, err = s.UpdateTask("t1", entity.TaskPatch{Done: &done})
	require.NoError(t, err)
	assert.Zero(t, owner)
}

func TestCorruptCreatedAtFailsFetch(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	insertTask(t, s, entity.Task{ID: "t1", Name: "Report", Created: base, Category: entity.CategoryRef{ID: "c1"}})

	_, err := s.db.Exec(`UPDATE tasks SET created_at = 'yesterday' WHERE id = 't1';`)
	require.NoError(t, err)
	_, err = s.FetchTasks()
	assert.ErrorContains(t, err, "task t1")
	_, err = s.FetchCategories()
	assert.Error(t, err)

	_, err = s.db.Exec(`UPDATE categories SET created_at = '' WHERE id = 'c1';`)
	require.NoError(t, err)
	_, err = s.FetchCategories()
	assert.ErrorContains(t, err, "category c1")
}

func TestDeleteCategoryCascades(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c2", Name: "Home", Created: base}))
	for i, id := range []string{"a", "b", "c"} {
		insertTask(t, s, entity.Task{ID: id, Name: id, Created: base.Add(time.Duration(i) * time.Second), Category: entity.CategoryRef{ID: "c1"}})
	}
	insertTask(t, s, entity.Task{ID: "d", Name: "d", Created: base, Category: entity.CategoryRef{ID: "c2"}})

	removed, err := s.DeleteCategory("c1")
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	tasks, err := s.FetchTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "d", tasks[0].ID)

	_, err = s.DeleteCategory("c1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTaskTwice(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.InsertCategory(entity.Category{ID: "c1", Name: "Work", Created: base}))
	insertTask(t, s, entity.Task{ID: "t1", Name: "x", Created: base, Category: entity.CategoryRef{ID: "c1"}})

	require.NoError(t, s.DeleteTask("t1"))
	assert.ErrorIs(t, s.DeleteTask("t1"), ErrNotFound)
	assert.ErrorIs(t, s.Exists(entity.KindTask, "t1"), ErrNotFound)
	assert.NoError(t, s.Exists(entity.KindCategory, "c1"))
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "file:memdb?mode=memory", sqliteDSN("file:memdb?mode=memory"))
	dsn := sqliteDSN("todo.db")
	assert.True(t, strings.HasPrefix(dsn, "file:"))
	assert.Contains(t, dsn, "mode=rwc")
	assert.Contains(t, dsn, "foreign_keys%281%29")
}
