package web

import "github.com/gofiber/fiber/v3"

// Register mounts the API routes on router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)

	e := router.Group("/events")
	e.Post("/status-changed", h.StatusChanged)
	e.Post("/tag-added", h.TagAdded)
	e.Post("/tag-removed", h.TagRemoved)
	e.Post("/days-in-stage", h.DaysInStage)
	e.Post("/score", h.Score)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.ImportWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/activate", h.ActivateWorkflow)
	w.Post("/:id/deactivate", h.DeactivateWorkflow)
	w.Post("/:id/run", h.RunWorkflow)
	w.Get("/:id/executions", h.GetWorkflowExecutions)

	router.Get("/executions/:id", h.GetExecution)
}
