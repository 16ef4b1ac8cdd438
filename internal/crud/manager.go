// Package crud is the single gateway to persisted categories and tasks.
// Every call is synchronous and has committed (or failed) by the time it
// returns.
package crud

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"bada/internal/entity"
	"bada/internal/storage"
)

// ErrNotFound is returned when the targeted entity does not exist.
var ErrNotFound = storage.ErrNotFound

// StoreError wraps a failure of the underlying store.
type StoreError struct {
	Op   string
	Kind entity.Kind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type Manager struct {
	mu    sync.Mutex
	store *storage.Store
	now   func() time.Time
	newID func() string
	last  time.Time
}

type Option func(*Manager)

// WithClock replaces the clock used to stamp new entities.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func New(store *storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// stamp returns a creation time strictly after every earlier stamp.
func (m *Manager) stamp() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Nanosecond)
	}
	m.last = t
	return t
}

// Create builds a new entity of kind from attrs. Both kinds need "name";
// tasks also need "category".
func (m *Manager) Create(kind entity.Kind, attrs entity.Attributes) (entity.Named, error) {
	switch kind {
	case entity.KindCategory:
		p, err := entity.DecodeCategoryPatch(attrs)
		if err != nil {
			return nil, err
		}
		if p.Name == nil {
			return nil, &entity.AttributeError{Kind: kind, Key: entity.AttrName, Reason: "required"}
		}
		c, err := m.CreateCategory(*p.Name)
		if err != nil {
			return nil, err
		}
		return &c, nil
	case entity.KindTask:
		p, err := entity.DecodeTaskPatch(attrs)
		if err != nil {
			return nil, err
		}
		if p.Name == nil {
			return nil, &entity.AttributeError{Kind: kind, Key: entity.AttrName, Reason: "required"}
		}
		if p.CategoryID == nil {
			return nil, &entity.AttributeError{Kind: kind, Key: entity.AttrCategory, Reason: "required"}
		}
		t, err := m.createTask(*p.Name, *p.CategoryID, p.Done != nil && *p.Done)
		if err != nil {
			return nil, err
		}
		return &t, nil
	default:
		return nil, fmt.Errorf("create: unknown kind %s", kind)
	}
}

func (m *Manager) CreateCategory(name string) (entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createCategoryLocked(name)
}

// createCategoryLocked expects m.mu to be held.
func (m *Manager) createCategoryLocked(name string) (entity.Category, error) {
	c := entity.Category{
		ID:      m.newID(),
		Name:    name,
		Created: m.stamp(),
	}
	if err := m.store.InsertCategory(c); err != nil {
		return entity.Category{}, m.fail("create", entity.KindCategory, err)
	}
	return c, nil
}

// CreateTask adds a pending task to the category with the given id.
func (m *Manager) CreateTask(name, categoryID string) (entity.Task, error) {
	return m.createTask(name, categoryID, false)
}

func (m *Manager) createTask(name, categoryID string, done bool) (entity.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.store.InsertTask(entity.Task{
		ID:       m.newID(),
		Name:     name,
		Done:     done,
		Created:  m.stamp(),
		Category: entity.CategoryRef{ID: categoryID},
	})
	if err != nil {
		return entity.Task{}, m.fail("create", entity.KindTask, err)
	}
	return t, nil
}

// AllItems returns every stored entity of kind in storage order.
func (m *Manager) AllItems(kind entity.Kind) ([]entity.Named, error) {
	switch kind {
	case entity.KindCategory:
		cs, err := m.Categories()
		if err != nil {
			return nil, err
		}
		items := make([]entity.Named, len(cs))
		for i := range cs {
			items[i] = &cs[i]
		}
		return items, nil
	case entity.KindTask:
		ts, err := m.Tasks()
		if err != nil {
			return nil, err
		}
		items := make([]entity.Named, len(ts))
		for i := range ts {
			items[i] = &ts[i]
		}
		return items, nil
	default:
		return nil, fmt.Errorf("all items: unknown kind %s", kind)
	}
}

func (m *Manager) Categories() ([]entity.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, err := m.store.FetchCategories()
	if err != nil {
		return nil, m.fail("fetch", entity.KindCategory, err)
	}
	return cs, nil
}

func (m *Manager) Tasks() ([]entity.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts, err := m.store.FetchTasks()
	if err != nil {
		return nil, m.fail("fetch", entity.KindTask, err)
	}
	return ts, nil
}

// Update applies attrs to an already persisted entity. Keys absent from
// attrs leave the matching fields untouched.
func (m *Manager) Update(obj entity.Named, attrs entity.Attributes) error {
	switch obj.Kind() {
	case entity.KindCategory:
		p, err := entity.DecodeCategoryPatch(attrs)
		if err != nil {
			return err
		}
		if err := m.UpdateCategory(obj.Identity(), p); err != nil {
			return err
		}
		if p.Name != nil {
			obj.SetName(*p.Name)
		}
		return nil
	case entity.KindTask:
		p, err := entity.DecodeTaskPatch(attrs)
		if err != nil {
			return err
		}
		owner, err := m.updateTask(obj.Identity(), p)
		if err != nil {
			return err
		}
		if p.Name != nil {
			obj.SetName(*p.Name)
		}
		t, ok := obj.(*entity.Task)
		if !ok {
			return nil
		}
		if p.Done != nil {
			t.Done = *p.Done
		}
		if p.CategoryID != nil {
			t.Category = owner
		}
		return nil
	default:
		return fmt.Errorf("update: unknown kind %s", obj.Kind())
	}
}

// UpdateCategory writes nothing for an empty patch; it still reports
// ErrNotFound for a missing category.
func (m *Manager) UpdateCategory(id string, p entity.CategoryPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IsEmpty() {
		return m.fail("update", entity.KindCategory, m.store.Exists(entity.KindCategory, id))
	}
	return m.fail("update", entity.KindCategory, m.store.UpdateCategory(id, p))
}

// UpdateTask writes nothing for an empty patch; it still reports ErrNotFound
// for a missing task.
func (m *Manager) UpdateTask(id string, p entity.TaskPatch) error {
	_, err := m.updateTask(id, p)
	return err
}

// updateTask returns the task's new owner when p moves it.
func (m *Manager) updateTask(id string, p entity.TaskPatch) (entity.CategoryRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.IsEmpty() {
		return entity.CategoryRef{}, m.fail("update", entity.KindTask, m.store.Exists(entity.KindTask, id))
	}
	owner, err := m.store.UpdateTask(id, p)
	if err != nil {
		return entity.CategoryRef{}, m.fail("update", entity.KindTask, err)
	}
	return owner, nil
}

func (m *Manager) Delete(obj entity.Named) error {
	switch obj.Kind() {
	case entity.KindCategory:
		_, err := m.DeleteCategory(obj.Identity())
		return err
	case entity.KindTask:
		return m.DeleteTask(obj.Identity())
	default:
		return fmt.Errorf("delete: unknown kind %s", obj.Kind())
	}
}

// DeleteCategory removes the category and every task it owns, returning the
// number of tasks removed.
func (m *Manager) DeleteCategory(id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed, err := m.store.DeleteCategory(id)
	if err != nil {
		return 0, m.fail("delete", entity.KindCategory, err)
	}
	if removed > 0 {
		log.Printf("deleted category %s with %d tasks", id, removed)
	}
	return removed, nil
}

func (m *Manager) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.fail("delete", entity.KindTask, m.store.DeleteTask(id))
}

// EnsureDefaultCategory creates a category called name when the store holds
// no category at all. It reports whether one was created. The count and the
// insert happen under one lock.
func (m *Manager) EnsureDefaultCategory(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, err := m.store.CountCategories()
	if err != nil {
		return false, m.fail("count", entity.KindCategory, err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := m.createCategoryLocked(name); err != nil {
		return false, err
	}
	log.Printf("created default category %q", name)
	return true, nil
}

// fail classifies a store error. ErrNotFound passes through untouched so
// callers can match it; anything else becomes a *StoreError.
func (m *Manager) fail(op string, kind entity.Kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return err
	}
	log.Printf("%s %s failed: %v", op, kind, err)
	return &StoreError{Op: op, Kind: kind, Err: err}
}
