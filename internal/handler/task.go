package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/calendar"
	"github.com/BuzzLyutic/taskboard/internal/model"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type TaskHandler struct {
	base
	service *service.TaskService
	owner   string
}

func NewTaskHandler(srv *service.TaskService, owner string, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		base:    base{logger: logger},
		service: srv,
		owner:   owner,
	}
}

// taskView adds the derived overdue flag to a task.
type taskView struct {
	model.Task
	Overdue bool `json:"overdue"`
}

type pageView struct {
	Items []taskView `json:"items"`
	Total int        `json:"total"`
}

func (h *TaskHandler) view(t model.Task) taskView {
	today := h.service.Today()
	return taskView{Task: t, Overdue: t.DueDate != nil && t.DueDate.Before(today)}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := respond.Decode(w, r, &body); err != nil {
		h.badJSON(w, r, err)
		return
	}
	owner := r.Header.Get("X-Owner")
	if owner == "" {
		owner = h.owner
	}
	req, err := buildNewTask(body, owner)
	if err != nil {
		h.badJSON(w, r, err)
		return
	}

	task, err := h.service.Create(r.Context(), req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/tasks/"+task.ID)
	respond.JSON(w, r, http.StatusCreated, h.view(task))
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, h.view(task))
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), params)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	out := pageView{Items: make([]taskView, 0, len(page.Items)), Total: page.Total}
	for _, t := range page.Items {
		out.Items = append(out.Items, h.view(t))
	}
	respond.JSON(w, r, http.StatusOK, out)
}

func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := respond.Decode(w, r, &body); err != nil {
		h.badJSON(w, r, err)
		return
	}
	patch, err := buildPatch(body)
	if err != nil {
		h.badJSON(w, r, err)
		return
	}

	task, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, h.view(task))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.NoContent(w)
}

func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context())
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, stats)
}

func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := calendar.ParseMonth(r.URL.Query().Get("month"), h.service.Today().Time)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	grid, err := h.service.Calendar(r.Context(), year, month)
	if err != nil {
		h.handleErrors(w, r, err)
		return
	}
	respond.JSON(w, r, http.StatusOK, grid)
}

func parseListParams(r *http.Request) (model.ListParams, error) {
	q := r.URL.Query()

	status, err := model.ParseStatusFilter(q.Get("status"))
	if err != nil {
		return model.ListParams{}, err
	}
	sort, err := model.ParseSortKey(q.Get("sort"))
	if err != nil {
		return model.ListParams{}, err
	}
	p := model.ListParams{Status: status, Search: q.Get("q"), Sort: sort}
	if p.Page, err = intParam(q.Get("page")); err != nil {
		return p, err
	}
	if p.PageSize, err = intParam(q.Get("page_size")); err != nil {
		return p, err
	}
	return p.Normalize(), nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, validationf("not a number: %q", s)
	}
	return n, nil
}
