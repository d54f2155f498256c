package handlers

import (
	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lineupstore/internal/api/middleware"
	"github.com/bigkaa/lineupstore/internal/domain/rbac"
)

// RegisterAPIRoutes регистрирует маршруты /api/v1.
// Аутентификация (JWT middleware) подключается снаружи, здесь только проверка ролей.
func RegisterAPIRoutes(r chi.Router, h *APIHandler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(rbac.RoleUser))

			r.Post("/submissions", h.CreateSubmission)
			r.Get("/submissions", h.ListMySubmissions)
			r.Delete("/submissions", h.DeleteSubmissions)
			r.Post("/submissions/from-lineup/{id}", h.CreateSubmissionFromLineup)
			r.Post("/submissions/{id}/withdraw", h.WithdrawSubmission)
			r.Delete("/submissions/{id}", h.DeleteSubmission)

			r.Post("/sync", h.SyncPublic)
			r.Get("/sync/status", h.SyncStatus)
			r.Get("/quotas/{action}", h.GetQuota)

			r.Post("/lineups/{id}/migrate-images", h.MigrateLineupImages)
			r.Get("/lineups/{id}/package", h.DownloadLineupPackage)
		})

		r.Route("/moderation", func(r chi.Router) {
			r.Use(middleware.RequireRole(rbac.RoleModerator))

			r.Get("/submissions", h.ListModerationQueue)
			r.Post("/submissions/{id}/approve", h.ApproveSubmission)
			r.Post("/submissions/{id}/reject", h.RejectSubmission)
			r.Post("/reconcile", h.RunReconcile)
			r.Delete("/public-lineups", h.DeletePublicLineups)
			r.Delete("/public-lineups/{id}", h.DeletePublicLineup)
			r.Get("/download-logs", h.ListDownloadLogs)
		})
	})
}
