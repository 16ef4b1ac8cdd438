package entity

import (
	"fmt"
	"sort"
	"time"
)

// Kind discriminates the closed set of persisted shapes. The zero Kind is
// invalid.
type Kind int

const (
	KindTask Kind = iota + 1
	KindCategory
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "Task"
	case KindCategory:
		return "Category"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func (k Kind) Valid() bool {
	return k == KindTask || k == KindCategory
}

// Named is implemented by every entity that carries a display name.
type Named interface {
	Kind() Kind
	Identity() string
	DisplayName() string
	SetName(name string)
}

func KindOf(n Named) Kind {
	return n.Kind()
}

type Category struct {
	ID      string
	Name    string
	Created time.Time
	Tasks   []Task
}

func (c *Category) Kind() Kind          { return KindCategory }
func (c *Category) Identity() string    { return c.ID }
func (c *Category) DisplayName() string { return c.Name }
func (c *Category) SetName(name string) { c.Name = name }

func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name}
}

// CategoryRef is the owner reference carried by every task.
type CategoryRef struct {
	ID   string
	Name string
}

type Task struct {
	ID       string
	Name     string
	Done     bool
	Created  time.Time
	Category CategoryRef
}

func (t *Task) Kind() Kind          { return KindTask }
func (t *Task) Identity() string    { return t.ID }
func (t *Task) DisplayName() string { return t.Name }
func (t *Task) SetName(name string) { t.Name = name }

// SortCategories orders categories, and the tasks inside each, by ascending
// creation time. Equal timestamps fall back to id order.
func SortCategories(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		return createdBefore(cs[i].Created, cs[j].Created, cs[i].ID, cs[j].ID)
	})
	for i := range cs {
		SortTasks(cs[i].Tasks)
	}
}

func SortTasks(ts []Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		return createdBefore(ts[i].Created, ts[j].Created, ts[i].ID, ts[j].ID)
	})
}

func createdBefore(a, b time.Time, idA, idB string) bool {
	if a.Equal(b) {
		return idA < idB
	}
	return a.Before(b)
}
