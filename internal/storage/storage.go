package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bada/internal/entity"
)

var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS categories (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_tasks_category ON tasks(category_id);`
	_, err := s.db.Exec(ddl)
	return err
}

// withTx runs fn in a transaction and commits it. Nothing fn wrote is kept
// when fn or the commit fails.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertCategory(c entity.Category) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO categories (id, name, created_at) VALUES (?, ?, ?);`,
			c.ID, c.Name, formatTime(c.Created))
		return err
	})
}

// InsertTask stores t and returns it with the owning category's name filled in.
func (s *Store) InsertTask(t entity.Task) (entity.Task, error) {
	err := s.withTx(func(tx *sql.Tx) error {
		name, err := categoryName(tx, t.Category.ID)
		if err != nil {
			return err
		}
		t.Category.Name = name
		_, err = tx.Exec(`INSERT INTO tasks (id, name, done, created_at, category_id) VALUES (?, ?, ?, ?, ?);`,
			t.ID, t.Name, boolToInt(t.Done), formatTime(t.Created), t.Category.ID)
		return err
	})
	if err != nil {
		return entity.Task{}, err
	}
	return t, nil
}

// FetchCategories returns every category in storage order, each carrying its
// tasks in storage order.
func (s *Store) FetchCategories() ([]entity.Category, error) {
	categories, err := s.fetchCategoryRows()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		index[c.ID] = i
	}

	tasks, err := s.FetchTasks()
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if i, ok := index[t.Category.ID]; ok {
			categories[i].Tasks = append(categories[i].Tasks, t)
		}
	}
	return categories, nil
}

func (s *Store) fetchCategoryRows() ([]entity.Category, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM categories ORDER BY rowid;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []entity.Category
	for rows.Next() {
		var c entity.Category
		var createdStr string
		if err := rows.Scan(&c.ID, &c.Name, &createdStr); err != nil {
			return nil, err
		}
		if c.Created, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("category %s: %w", c.ID, err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) FetchTasks() ([]entity.Task, error) {
	rows, err := s.db.Query(`
SELECT t.id, t.name, t.done, t.created_at, c.id, c.name
FROM tasks t JOIN categories c ON c.id = t.category_id
ORDER BY t.rowid;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []entity.Task
	for rows.Next() {
		var t entity.Task
		var doneInt int
		var createdStr string
		if err := rows.Scan(&t.ID, &t.Name, &doneInt, &createdStr, &t.Category.ID, &t.Category.Name); err != nil {
			return nil, err
		}
		t.Done = doneInt == 1
		if t.Created, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("task %s: %w", t.ID, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) CountCategories() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM categories;`).Scan(&n)
	return n, err
}

// Exists reports ErrNotFound when no entity of kind has the given id.
func (s *Store) Exists(kind entity.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	var one int
	err = s.db.QueryRow(`SELECT 1 FROM `+table+` WHERE id = ?;`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Store) UpdateCategory(id string, p entity.CategoryPatch) error {
	return s.withTx(func(tx *sql.Tx) error {
		var sets []string
		var args []any
		if p.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *p.Name)
		}
		return execUpdate(tx, "categories", id, sets, args)
	})
}

// UpdateTask applies p to the task with the given id. When p moves the task
// it returns the new owner, otherwise a zero CategoryRef.
func (s *Store) UpdateTask(id string, p entity.TaskPatch) (entity.CategoryRef, error) {
	var owner entity.CategoryRef
	err := s.withTx(func(tx *sql.Tx) error {
		var sets []string
		var args []any
		if p.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *p.Name)
		}
		if p.Done != nil {
			sets = append(sets, "done = ?")
			args = append(args, boolToInt(*p.Done))
		}
		if p.CategoryID != nil {
			name, err := categoryName(tx, *p.CategoryID)
			if err != nil {
				return err
			}
			owner = entity.CategoryRef{ID: *p.CategoryID, Name: name}
			sets = append(sets, "category_id = ?")
			args = append(args, *p.CategoryID)
		}
		return execUpdate(tx, "tasks", id, sets, args)
	})
	if err != nil {
		return entity.CategoryRef{}, err
	}
	return owner, nil
}

// DeleteCategory removes the category together with every task it owns and
// returns how many tasks went with it.
func (s *Store) DeleteCategory(id string) (int, error) {
	var removed int
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM tasks WHERE category_id = ?;`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = int(n)
		res, err = tx.Exec(`DELETE FROM categories WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *Store) DeleteTask(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM tasks WHERE id = ?;`, id)
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
}

func execUpdate(tx *sql.Tx, table, id string, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?;`, table, strings.Join(sets, ", "))
	res, err := tx.Exec(query, append(args, id)...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func categoryName(tx *sql.Tx, id string) (string, error) {
	var name string
	err := tx.QueryRow(`SELECT name FROM categories WHERE id = ?;`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return name, err
}

func tableFor(kind entity.Kind) (string, error) {
	switch kind {
	case entity.KindTask:
		return "tasks", nil
	case entity.KindCategory:
		return "categories", nil
	default:
		return "", fmt.Errorf("no table for %s", kind)
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad created_at %q: %w", v, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	u.RawQuery = q.Encode()
	return u.String()
}
