package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JGibbsWork/lifestack/internal/store"
)

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	query := r.URL.Query().Get("q")
	limit := queryInt(r.URL.Query().Get("limit"))

	var (
		memories []store.Memory
		err      error
	)
	if query != "" {
		memories, err = s.db.SearchMemories(query, limit)
	} else {
		memories, err = s.db.ListMemories(category, limit)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"memories": memories,
		"count":    len(memories),
	})
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, `{"error":"content required"}`, http.StatusBadRequest)
		return
	}

	mem, err := s.db.CreateMemory(req.Content, req.Category, req.Tags)
	if err != nil {
		writeErr(w, err)
		return
	}
	respond(w, http.StatusCreated, mem)
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	mem, err := s.db.GetMemory(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if mem == nil {
		http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, mem)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	var req struct {
		Content  string   `json:"content"`
		Category string   `json:"category"`
		Tags     []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, `{"error":"content required"}`, http.StatusBadRequest)
		return
	}

	mem, err := s.db.UpdateMemory(id, req.Content, req.Category, req.Tags)
	if err != nil {
		writeErr(w, err)
		return
	}
	if mem == nil {
		http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, mem)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, ok := memoryID(w, r)
	if !ok {
		return
	}

	deleted, err := s.db.DeleteMemory(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !deleted {
		http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
		return
	}
	respond(w, http.StatusOK, map[string]any{"deleted": true})
}

func memoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "memoryID"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"invalid memory id"}`, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
