package router

import (
	"github.com/gin-gonic/gin"

	"github.com/tffhost/backend/internal/interfaces/http/handler"
	"github.com/tffhost/backend/internal/interfaces/http/middleware"
)

// Handlers are the endpoint groups served under the versioned API prefix
type Handlers struct {
	Orders     *handler.OrderHandler
	Agreements *handler.AgreementHandler
	Profiles   *handler.ProfileHandler
	Nodes      *handler.NodeHandler
	Tasks      *handler.TaskHandler
	Jobs       *handler.JobHandler
}

// APIGroups builds the route table. Signed-in users reach their own data under
// /me; the login and signing services may create records and report signatures;
// everything else is for administrators.
func APIGroups(h Handlers) []RouteRegistrar {
	user := middleware.RequireUser()
	caller := middleware.RequireRole(middleware.RoleService, middleware.RoleAdmin)
	admin := middleware.RequireRole(middleware.RoleAdmin)

	me := NewDomainGroup("me", "/me").Use(user)
	me.GET("/profile", h.Profiles.GetMyProfile).
		GET("/nodes", h.Nodes.ListMyNodes).
		GET("/nodes/stats", h.Nodes.GetMyNodeStats).
		GET("/orders", h.Orders.ListMyOrders).
		POST("/orders", h.Orders.CreateMyOrder).
		GET("/agreements", h.Agreements.ListMyAgreements)

	profiles := NewDomainGroup("profiles", "/profiles")
	profiles.POST("", caller, h.Profiles.RegisterProfile).
		GET("", admin, h.Profiles.ListProfiles).
		GET("/:username", admin, h.Profiles.GetProfile).
		PUT("/:username/kyc/status", admin, h.Profiles.SetKYCStatus).
		POST("/:username/kyc/utility-bill/verify", admin, h.Profiles.VerifyUtilityBill)

	orders := NewDomainGroup("orders", "/orders")
	orders.POST("", caller, h.Orders.CreateOrder).
		POST("/:id/sign-result", caller, h.Orders.OrderSignResult).
		GET("", admin, h.Orders.ListOrders).
		GET("/:id", admin, h.Orders.GetOrder).
		PUT("/:id/status", admin, h.Orders.UpdateOrderStatus).
		POST("/import", admin, h.Orders.ImportOrder)

	agreements := NewDomainGroup("agreements", "/agreements")
	agreements.POST("", caller, h.Agreements.CreateAgreement).
		POST("/:id/sign-result", caller, h.Agreements.AgreementSignResult).
		GET("", admin, h.Agreements.ListAgreements).
		GET("/:id", admin, h.Agreements.GetAgreement).
		PUT("/:id/status", admin, h.Agreements.UpdateAgreementStatus).
		POST("/:id/paid", admin, h.Agreements.MarkAgreementPaid).
		PUT("/:id/document", admin, h.Agreements.UploadAgreementDocument).
		GET("/:id/document", admin, h.Agreements.GetAgreementDocument)

	nodes := NewDomainGroup("nodes", "/nodes").Use(admin)
	nodes.GET("", h.Nodes.ListNodes).
		POST("/assign", h.Nodes.AssignNodes)

	users := NewDomainGroup("users", "/users").Use(admin)
	users.GET("/:username/nodes/stats", h.Nodes.GetUserNodeStats)

	tasks := NewDomainGroup("tasks", "/tasks").Use(admin)
	tasks.GET("/dead", h.Tasks.ListDeadTasks).
		POST("/dead/retry", h.Tasks.RetryAllDeadTasks).
		GET("/stats", h.Tasks.GetTaskStats).
		GET("/:id", h.Tasks.GetTask).
		POST("/:id/retry", h.Tasks.RetryTask)

	jobs := NewDomainGroup("jobs", "/jobs").Use(admin)
	jobs.GET("", h.Jobs.ListJobs).
		POST("/:name/run", h.Jobs.RunJob)

	return []RouteRegistrar{me, profiles, orders, agreements, nodes, users, tasks, jobs}
}

// SystemRoutes registers the unversioned health and information endpoints
func SystemRoutes(engine *gin.Engine, system *handler.SystemHandler) {
	engine.GET("/health", system.Health)
	sys := engine.Group("/system")
	sys.GET("/info", system.GetSystemInfo)
	sys.GET("/ping", system.Ping)
}
