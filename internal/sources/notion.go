package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/JGibbsWork/lifestack/internal/cache"
)

const (
	notionAPI     = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// Notion searches the workspace and reads databases and pages.
type Notion struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	cache *cache.Store
}

// NewNotion creates a Notion adapter.
func NewNotion(apiKey string, c *cache.Store) *Notion {
	return &Notion{
		BaseURL:    notionAPI,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		cache:      c,
	}
}

type notionObject struct {
	Object         string                     `json:"object"` // "page" or "database"
	ID             string                     `json:"id"`
	URL            string                     `json:"url"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Properties     map[string]json.RawMessage `json:"properties"`
	Title          []notionRichText           `json:"title"` // databases only
}

type notionRichText struct {
	PlainText string `json:"plain_text"`
}

// SearchParams shapes a workspace search.
type SearchParams struct {
	Query    string `json:"query"`
	Filter   string `json:"filter,omitempty"` // "page", "database", or empty for both
	PageSize int    `json:"page_size,omitempty"`
}

// Search runs a workspace search and returns normalized hits.
func (n *Notion) Search(ctx context.Context, p SearchParams) ([]SearchHit, error) {
	if p.Query == "" {
		return nil, &ValidationError{Field: "q", Reason: "required"}
	}
	if p.PageSize <= 0 {
		p.PageSize = 20
	}

	key := cache.NotionSearchKey(p)
	if v, ok := n.cache.Get(key); ok {
		return v.([]SearchHit), nil
	}

	payload := map[string]any{"query": p.Query, "page_size": p.PageSize}
	if p.Filter == "page" || p.Filter == "database" {
		payload["filter"] = map[string]string{"property": "object", "value": p.Filter}
	}

	var result struct {
		Results []notionObject `json:"results"`
	}
	if err := n.post(ctx, "/search", payload, &result); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(result.Results))
	for _, obj := range result.Results {
		hits = append(hits, normalizeNotionObject(obj))
	}
	n.cache.Set(key, hits, cache.TTLNotionSearch)
	return hits, nil
}

// DatabaseSchema is the cached shape of a Notion database.
type DatabaseSchema struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Properties []string `json:"properties"`
}

// Database returns a database's schema (slow-moving, cached 30m).
func (n *Notion) Database(ctx context.Context, id string) (*DatabaseSchema, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}

	key := cache.NotionDatabaseKey(id)
	if v, ok := n.cache.Get(key); ok {
		schema := v.(DatabaseSchema)
		return &schema, nil
	}

	var obj notionObject
	if err := n.get(ctx, "/databases/"+url.PathEscape(id), &obj); err != nil {
		return nil, err
	}

	schema := DatabaseSchema{ID: obj.ID, Title: plainTitle(obj.Title)}
	for name := range obj.Properties {
		schema.Properties = append(schema.Properties, name)
	}
	n.cache.Set(key, schema, cache.TTLNotionDatabase)
	return &schema, nil
}

// QueryDatabase returns rows of a task database normalized as Tasks.
// Rows are expected to carry "Name" (title), "Done" (checkbox), and
// optionally "Due" (date) properties.
func (n *Notion) QueryDatabase(ctx context.Context, id string) ([]Task, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}

	var result struct {
		Results []struct {
			ID          string    `json:"id"`
			CreatedTime time.Time `json:"created_time"`
			Properties  struct {
				Name struct {
					Title []notionRichText `json:"title"`
				} `json:"Name"`
				Done struct {
					Checkbox bool `json:"checkbox"`
				} `json:"Done"`
				Due struct {
					Date *struct {
						Start string `json:"start"`
					} `json:"date"`
				} `json:"Due"`
			} `json:"properties"`
		} `json:"results"`
	}
	if err := n.post(ctx, "/databases/"+url.PathEscape(id)+"/query", map[string]any{}, &result); err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(result.Results))
	for _, row := range result.Results {
		task := Task{
			ID:        row.ID,
			Title:     plainTitle(row.Properties.Name.Title),
			Type:      "todo",
			Completed: row.Properties.Done.Checkbox,
			CreatedAt: row.CreatedTime,
			Source:    ServiceNotion,
		}
		if d := row.Properties.Due.Date; d != nil && d.Start != "" {
			if due, err := parseNotionDate(d.Start); err == nil {
				task.Due = &due
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// PageContent is the cached text content of a page.
type PageContent struct {
	ID     string   `json:"id"`
	Blocks []string `json:"blocks"`
}

// Page returns the plain-text paragraphs of a page (cached 10m).
func (n *Notion) Page(ctx context.Context, id string) (*PageContent, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Reason: "required"}
	}

	key := cache.NotionPageKey(id)
	if v, ok := n.cache.Get(key); ok {
		content := v.(PageContent)
		return &content, nil
	}

	var result struct {
		Results []struct {
			Type      string `json:"type"`
			Paragraph struct {
				RichText []notionRichText `json:"rich_text"`
			} `json:"paragraph"`
			Heading1 struct {
				RichText []notionRichText `json:"rich_text"`
			} `json:"heading_1"`
		} `json:"results"`
	}
	if err := n.get(ctx, "/blocks/"+url.PathEscape(id)+"/children", &result); err != nil {
		return nil, err
	}

	content := PageContent{ID: id, Blocks: []string{}}
	for _, block := range result.Results {
		var text string
		switch block.Type {
		case "paragraph":
			text = plainTitle(block.Paragraph.RichText)
		case "heading_1":
			text = plainTitle(block.Heading1.RichText)
		}
		if text != "" {
			content.Blocks = append(content.Blocks, text)
		}
	}
	n.cache.Set(key, content, cache.TTLNotionPage)
	return &content, nil
}

func (n *Notion) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", n.BaseURL+path, nil)
	if err != nil {
		return &InternalError{Op: "notion request", Err: err}
	}
	return n.do(req, out)
}

func (n *Notion) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &InternalError{Op: "marshal notion request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, "POST", n.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &InternalError{Op: "notion request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return n.do(req, out)
}

func (n *Notion) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+n.APIKey)
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return transportErr(ServiceNotion, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportErr(ServiceNotion, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatusRetry(ServiceNotion, resp, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &InternalError{Op: "decode notion response", Err: err}
	}
	return nil
}

func normalizeNotionObject(obj notionObject) SearchHit {
	hit := SearchHit{
		ID:         obj.ID,
		Kind:       obj.Object,
		URL:        obj.URL,
		LastEdited: obj.LastEditedTime,
		Source:     ServiceNotion,
	}
	if len(obj.Title) > 0 {
		hit.Title = plainTitle(obj.Title)
		return hit
	}
	// Pages carry their title inside a title-type property.
	for _, raw := range obj.Properties {
		var prop struct {
			Type  string           `json:"type"`
			Title []notionRichText `json:"title"`
		}
		if err := json.Unmarshal(raw, &prop); err != nil {
			continue
		}
		if prop.Type == "title" && len(prop.Title) > 0 {
			hit.Title = plainTitle(prop.Title)
			break
		}
	}
	return hit
}

func plainTitle(parts []notionRichText) string {
	text := ""
	for _, p := range parts {
		text += p.PlainText
	}
	return text
}

func parseNotionDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
