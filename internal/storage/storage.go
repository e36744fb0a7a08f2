// Package storage persists tasks for the local mock API in sqlite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"smarttodo/internal/task"
)

var ErrNotFound = errors.New("task not found")

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
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	// A single connection also keeps file::memory: databases alive and shared.
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
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	deadline TEXT NOT NULL DEFAULT '',
	is_completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns upgrades databases created before a column existed.
func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"description":  "ALTER TABLE tasks ADD COLUMN description TEXT NOT NULL DEFAULT '';",
		"deadline":     "ALTER TABLE tasks ADD COLUMN deadline TEXT NOT NULL DEFAULT '';",
		"is_completed": "ALTER TABLE tasks ADD COLUMN is_completed INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (task.Task, error) {
	var t task.Task
	var id int64
	var done int
	if err := row.Scan(&id, &t.Title, &t.Description, &t.Deadline, &done); err != nil {
		return task.Task{}, err
	}
	t.ID = strconv.FormatInt(id, 10)
	t.IsCompleted = done == 1
	return t, nil
}

// ListTasks returns every task in insertion order.
func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, deadline, is_completed FROM tasks ORDER BY id;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return task.Task{}, ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT id, title, description, deadline, is_completed FROM tasks WHERE id = ?;`, n)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, ErrNotFound
	}
	return t, err
}

// CreateTask inserts t, ignoring any id it carries, and returns the stored row.
func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (title, description, deadline, is_completed, created_at) VALUES (?, ?, ?, ?, ?);`,
		t.Title, t.Description, t.Deadline, boolToInt(t.IsCompleted), now)
	if err != nil {
		return task.Task{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return task.Task{}, err
	}
	t.ID = strconv.FormatInt(id, 10)
	return t, nil
}

// ReplaceTask overwrites every mutable field of the task with id.
func (s *Store) ReplaceTask(ctx context.Context, id string, t task.Task) (task.Task, error) {
	n, ok := parseID(id)
	if !ok {
		return task.Task{}, ErrNotFound
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, deadline = ?, is_completed = ? WHERE id = ?;`,
		t.Title, t.Description, t.Deadline, boolToInt(t.IsCompleted), n)
	if err != nil {
		return task.Task{}, err
	}
	if err := expectOne(res); err != nil {
		return task.Task{}, err
	}
	t.ID = strconv.FormatInt(n, 10)
	return t, nil
}

// DeleteTask removes the task and returns it as it was.
func (s *Store) DeleteTask(ctx context.Context, id string) (task.Task, error) {
	t, err := s.GetTask(ctx, id)
	if err != nil {
		return task.Task{}, err
	}
	n, _ := parseID(t.ID)
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, n)
	if err != nil {
		return task.Task{}, err
	}
	if err := expectOne(res); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseID(id string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
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
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
