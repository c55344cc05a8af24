package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/todo-api/internal/api"
	apiMiddleware "github.com/phrazzld/todo-api/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)

	eventsHandler, err := api.NewEventsHandler(app.emitter, api.EventsHandlerConfig{
		SourceBucket:      app.config.Storage.AttachmentsBucket,
		InvocationTimeout: time.Duration(app.config.Pipeline.InvocationTimeoutSeconds) * time.Second,
	}, app.logger)
	if err != nil {
		// ALLOW-PANIC: configuration was validated at load time
		panic("failed to create events handler: " + err.Error())
	}

	return newRouter(routerDeps{
		logger:         app.logger,
		authMiddleware: apiMiddleware.NewAuthMiddleware(app.jwtService),
		taskHandler:    taskHandler,
		eventsHandler:  eventsHandler,
		serveWS:        app.hub.ServeWS,
		management:     app.hub.ManagementRoutes(),
		stage:          app.config.Gateway.Stage,
		internalToken:  app.config.Server.InternalToken,
	})
}

// routerDeps are the handlers the router mounts.
type routerDeps struct {
	logger         *slog.Logger
	authMiddleware *apiMiddleware.AuthMiddleware
	taskHandler    *api.TaskHandler
	eventsHandler  *api.EventsHandler
	serveWS        http.HandlerFunc
	management     http.Handler
	stage          string
	internalToken  string
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(deps.logger))

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(deps.authMiddleware.Authenticate)

		r.Get("/", deps.taskHandler.ListTasks)
		r.Post("/", deps.taskHandler.CreateTask)
		r.Patch("/{"+api.TaskIDParam+"}", deps.taskHandler.UpdateTask)
		r.Delete("/{"+api.TaskIDParam+"}", deps.taskHandler.DeleteTask)
		r.Post("/{"+api.TaskIDParam+"}/attachment", deps.taskHandler.CreateAttachmentURL)
	})

	r.Get("/ws", deps.serveWS)

	// Broker pushes and the connection management API are service-to-service.
	r.Group(func(r chi.Router) {
		r.Use(apiMiddleware.RequireInternalToken(deps.internalToken))

		r.Post("/events/uploads", deps.eventsHandler.HandleUploads)
		r.Mount("/"+deps.stage, deps.management)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			deps.logger.Error("failed to write health check response", slog.String("error", err.Error()))
		}
	})

	return r
}
