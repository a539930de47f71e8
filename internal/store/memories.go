package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Memory is a free-form note.
type Memory struct {
	ID        int64    `json:"id"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

// CreateMemory inserts a note and returns it with its assigned id.
func (db *DB) CreateMemory(content, category string, tags []string) (*Memory, error) {
	if category == "" {
		category = "general"
	}
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO memories (content, category, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, content, category, string(tagsJSON), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	id, _ := result.LastInsertId()
	return &Memory{
		ID:        id,
		Content:   content,
		Category:  category,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetMemory returns one note by id, or nil when absent.
func (db *DB) GetMemory(id int64) (*Memory, error) {
	row := db.QueryRow(`
		SELECT id, content, category, tags, created_at, updated_at
		FROM memories WHERE id = ?
	`, id)

	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return m, nil
}

// ListMemories returns notes newest-first, optionally filtered by category.
func (db *DB) ListMemories(category string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if category != "" {
		rows, err = db.Query(`
			SELECT id, content, category, tags, created_at, updated_at
			FROM memories WHERE category = ? ORDER BY created_at DESC LIMIT ?
		`, category, limit)
	} else {
		rows, err = db.Query(`
			SELECT id, content, category, tags, created_at, updated_at
			FROM memories ORDER BY created_at DESC LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// SearchMemories returns notes whose content contains the substring,
// newest-first.
func (db *DB) SearchMemories(query string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(`
		SELECT id, content, category, tags, created_at, updated_at
		FROM memories WHERE content LIKE ? ORDER BY created_at DESC LIMIT ?
	`, "%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, *m)
	}
	return memories, rows.Err()
}

// UpdateMemory replaces a note's content, category, and tags.
func (db *DB) UpdateMemory(id int64, content, category string, tags []string) (*Memory, error) {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		UPDATE memories SET content = ?, category = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`, content, category, string(tagsJSON), now, id)
	if err != nil {
		return nil, fmt.Errorf("update memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, nil
	}
	return db.GetMemory(id)
}

// DeleteMemory removes a note. Reports whether it existed.
func (db *DB) DeleteMemory(id int64) (bool, error) {
	result, err := db.Exec(`DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var tagsJSON string
	if err := row.Scan(&m.ID, &m.Content, &m.Category, &tagsJSON, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		m.Tags = []string{}
	}
	return &m, nil
}
