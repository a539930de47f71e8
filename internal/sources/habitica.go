package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
)

const habiticaAPI = "https://habitica.com/api/v3"

// Habitica fetches and mutates tasks through the Habitica API.
type Habitica struct {
	BaseURL    string
	UserID     string
	APIToken   string
	HTTPClient *http.Client

	cache *cache.Store
}

// NewHabitica creates a Habitica adapter.
func NewHabitica(userID, apiToken string, c *cache.Store) *Habitica {
	return &Habitica{
		BaseURL:    habiticaAPI,
		UserID:     userID,
		APIToken:   apiToken,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		cache:      c,
	}
}

type habiticaTask struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Type      string    `json:"type"` // "todo", "daily", "habit"
	Completed bool      `json:"completed"`
	Date      string    `json:"date"` // due date for todos, may be empty
	CreatedAt time.Time `json:"createdAt"`
}

// Tasks returns normalized tasks of the given Habitica type
// ("todos" or "dailys"). Results are not cached here: the aggregation
// engine caches the merged task view it builds from them.
func (h *Habitica) Tasks(ctx context.Context, typ string) ([]Task, error) {
	if typ != "todos" && typ != "dailys" {
		return nil, &ValidationError{Field: "type", Reason: "must be todos or dailys"}
	}

	endpoint := fmt.Sprintf("%s/tasks/user?%s", h.BaseURL, url.Values{"type": {typ}}.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &InternalError{Op: "habitica request", Err: err}
	}

	var result struct {
		Data []habiticaTask `json:"data"`
	}
	if err := h.do(req, &result); err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(result.Data))
	for _, ht := range result.Data {
		tasks = append(tasks, normalizeHabiticaTask(ht))
	}
	return tasks, nil
}

// TaskInput is the caller-facing shape for creating a task.
type TaskInput struct {
	Title string     `json:"title"`
	Type  string     `json:"type"` // "todo" or "daily"
	Due   *time.Time `json:"due,omitempty"`
}

// CreateTask creates a task upstream and invalidates the task and
// today views built from it.
func (h *Habitica) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "required"}
	}
	typ := in.Type
	if typ == "" {
		typ = "todo"
	}
	if typ != "todo" && typ != "daily" {
		return nil, &ValidationError{Field: "type", Reason: "must be todo or daily"}
	}

	payload := map[string]any{"text": in.Title, "type": typ}
	if in.Due != nil {
		payload["date"] = in.Due.Format(time.RFC3339)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &InternalError{Op: "marshal task", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.BaseURL+"/tasks/user", bytes.NewReader(body))
	if err != nil {
		return nil, &InternalError{Op: "create task request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	var result struct {
		Data habiticaTask `json:"data"`
	}
	if err := h.do(req, &result); err != nil {
		return nil, err
	}

	h.invalidateTaskViews()

	task := normalizeHabiticaTask(result.Data)
	return &task, nil
}

// ScoreTask marks a task up (complete) or down upstream.
func (h *Habitica) ScoreTask(ctx context.Context, id string, up bool) error {
	if id == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}

	direction := "down"
	if up {
		direction = "up"
	}
	endpoint := fmt.Sprintf("%s/tasks/%s/score/%s", h.BaseURL, url.PathEscape(id), direction)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, nil)
	if err != nil {
		return &InternalError{Op: "score task request", Err: err}
	}

	var result struct {
		Data json.RawMessage `json:"data"`
	}
	if err := h.do(req, &result); err != nil {
		return err
	}

	h.invalidateTaskViews()
	return nil
}

func (h *Habitica) invalidateTaskViews() {
	h.cache.DeletePrefix("unified:tasks:")
	h.cache.Delete(cache.UnifiedTodayKey())
}

func (h *Habitica) do(req *http.Request, out any) error {
	req.Header.Set("x-api-user", h.UserID)
	req.Header.Set("x-api-key", h.APIToken)
	req.Header.Set("x-client", h.UserID+"-lifestack")

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return transportErr(ServiceHabitica, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ServiceHabitica, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatusRetry(ServiceHabitica, resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &InternalError{Op: "decode habitica response", Err: err}
	}
	return nil
}

func normalizeHabiticaTask(ht habiticaTask) Task {
	task := Task{
		ID:        ht.ID,
		Title:     ht.Text,
		Completed: ht.Completed,
		CreatedAt: ht.CreatedAt,
		Source:    ServiceHabitica,
	}
	switch ht.Type {
	case "daily":
		task.Type = "daily"
	default:
		task.Type = "todo"
	}
	if ht.Date != "" {
		if due, err := time.Parse(time.RFC3339, ht.Date); err == nil {
			task.Due = &due
		}
	}
	return task
}
