package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chepyr/go-task-demo/shared"
)

// NewRouter wires the task routes and the event stream onto a chi router.
func NewRouter(h *Handler) http.Handler {
	router := chi.NewRouter()
	if h.TrustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(h.RequestLogger)
	router.Use(middleware.Recoverer)

	router.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Get("/{id}", h.getTask)
		r.Patch("/{id}", h.updateTask)
		r.Delete("/{id}", h.deleteTask)
	})
	router.Get("/ws", h.HandleWebSocket)

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		shared.SendError(w, "Not found", http.StatusNotFound)
	})
	return router
}
