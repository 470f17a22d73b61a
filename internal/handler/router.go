package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/taskboard/internal/repo"
	"github.com/BuzzLyutic/taskboard/internal/service"
	"github.com/BuzzLyutic/taskboard/pkg/respond"
)

type Deps struct {
	Tasks          *service.TaskService
	Assistant      Assistant
	Imports        repo.ImportQueue
	Owner          string
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	tasks := NewTaskHandler(d.Tasks, d.Owner, d.Logger)
	assistant := NewAIHandler(d.Assistant, d.Imports, d.Owner, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(ZapLogger(d.Logger))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(d.RequestTimeout))

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", tasks.Create)
				r.Get("/", tasks.List)
				r.Get("/{id}", tasks.Get)
				r.Patch("/{id}", tasks.Update)
				r.Delete("/{id}", tasks.Delete)
			})
			r.Get("/stats", tasks.Stats)
			r.Get("/calendar", tasks.Calendar)
			r.Post("/imports", assistant.CreateImport)
			r.Get("/imports/{id}", assistant.GetImport)
		})

		// Completion calls carry their own deadline.
		r.Post("/ai-edit", assistant.Edit)
		r.Post("/ai-extract", assistant.Extract)
	})

	return r
}
