package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/vitracka/companion/internal/api/v1"
	"github.com/vitracka/companion/internal/api/ws"
	"github.com/vitracka/companion/internal/audit"
	"github.com/vitracka/companion/internal/notify"
	"github.com/vitracka/companion/internal/orchestrator"
)

func registerUserRoutes(api huma.API, orch *orchestrator.Orchestrator, policy *notify.Policy) {
	v1.RegisterChatRoutes(api, orch)
	v1.RegisterNotificationRoutes(api, policy)
}

func registerAdminRoutes(api huma.API, auditLog *audit.Log) {
	v1.RegisterAuditRoutes(api, auditLog)
}

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/alerts", hub.ServeAlerts)
}
