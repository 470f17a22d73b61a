package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

// Assistant proposes edits and extracts tasks. Satisfied by *ai.Client.
type Assistant interface {
	ProposeEdit(ctx context.Context, current model.Task, instruction string) (model.Edit, error)
	ExtractTasks(ctx context.Context, document string) ([]model.Draft, error)
}

type AIHandler struct {
	base
	assistant Assistant
	imports   repo.ImportQueue
	owner     string
}

func NewAIHandler(assistant Assistant, imports repo.ImportQueue, owner string, logger *zap.Logger) *AIHandler {
	return &AIHandler{
		base:      base{logger: logger},
		assistant: assistant,
		imports:   imports,
		owner:     owner,
	}
}

type editRequest struct {
	CurrentTodo model.Task `json:"currentTodo"`
	Prompt      string     `json:"prompt"`
}

type extractRequest struct {
	Document string `json:"document"`
}

// Edit returns the model's proposed revision of currentTodo. Nothing is persisted.
func (h *AIHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.handleErrors(w, r, validationf("prompt must not be empty"))
		return
	}

	edit, err := h.assistant.ProposeEdit(r.Context(), req.CurrentTodo, req.Prompt)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, edit)
}

func (h *AIHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}

	drafts, err := h.assistant.ExtractTasks(r.Context(), req.Document)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	if drafts == nil {
		drafts = []model.Draft{}
	}
	respond.JSON(w, r, http.StatusOK, map[string]any{"tasks": drafts})
}

// CreateImport queues a document for background extraction.
func (h *AIHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := respond.Decode(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}
	if strings.TrimSpace(req.Document) == "" {
		h.handleErrors(w, r, validationf("document must not be empty"))
		return
	}
	owner := r.Header.Get("X-Owner")
	if owner == "" {
		owner = h.owner
	}

	job, err := h.imports.Enqueue(r.Context(), owner, req.Document)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/imports/"+job.ID)
	respond.JSON(w, r, http.StatusAccepted, job)
}

func (h *AIHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	job, err := h.imports.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, job)
}
