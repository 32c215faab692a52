package main

import (
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/httpapi"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/team"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(
	r *gin.Engine,
	authMW gin.HandlerFunc,
	h httpapi.Handlers,
	teamHandler *team.Handler,
	webhookHandler *calls.WebhookHandler,
) {
	// Invitation accept answers 405 for non-POST methods on the same path.
	r.HandleMethodNotAllowed = true

	// public
	r.GET("/healthz", h.Healthz)

	// Provider webhooks (public).
	// NOTE: protect with Retell signature verification before exposing publicly.
	r.POST("/webhooks/retell/call-completed", webhookHandler.HandleCallCompleted)

	// Token issuance (public).
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	// Invitation accept is authenticated by the invite token itself.
	r.POST("/api/team/invite/accept", teamHandler.Accept)

	adminRoles := []string{rbac.RoleOwner, rbac.RoleAdmin}

	// Team management stays under /api; the dashboard consumes it there.
	api := r.Group("/api")
	api.Use(authMW)
	{
		invite := api.Group("/team")
		invite.Use(httpapi.RequireCompanyAndAnyRole(adminRoles...)...)
		invite.POST("/invite", teamHandler.Invite)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireCompany())
	{
		// CREDITS routes (self-scoped)
		creditsGroup := v1.Group("/credits")
		{
			creditsGroup.GET("/balance", h.GetBalance)
			creditsGroup.GET("/transactions", h.ListTransactions)
		}

		// CALLS routes (self-scoped history)
		v1.GET("/calls", h.ListCalls)

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(adminRoles...))
		{
			admin.POST("/credits/adjust", h.AdminAdjustBalance)
		}

		// ALERTS routes
		alertsGroup := v1.Group("/alerts")
		alertsGroup.Use(rbac.RequireAnyRole(adminRoles...))
		{
			alertsGroup.GET("/low-balance", h.ListLowBalance)
			alertsGroup.POST("/notify", h.NotifyLowBalance)
		}

		// AGENTS routes
		agentsGroup := v1.Group("/agents")
		{
			agentsGroup.GET("", h.ListAgents)
			agentsGroup.GET("/sync/runs", h.ListSyncRuns)

			adminAgents := agentsGroup.Group("")
			adminAgents.Use(rbac.RequireAnyRole(adminRoles...))
			{
				adminAgents.POST("/sync", h.TriggerAgentSync)
				adminAgents.GET("/unassigned", h.ListUnassignedAgents)
				adminAgents.POST("/assignments/primary", h.AssignPrimaryAgent)
			}
		}

		// REPORTS routes (any authenticated role; scoping inside the handler)
		reports := v1.Group("/reports")
		{
			reports.GET("/calls-summary", h.CallsSummaryReport)
			reports.GET("/spend-summary", h.SpendSummaryReport)
		}
	}
}
