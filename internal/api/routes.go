package api

import (
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/environments"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
)

// adminRoute is the allowed-routes key that gates the administration
// endpoints; the dashboard's admin section carries the same path.
const adminRoute = "/dashboard/admin"

// Services bundles the dependencies SetupRoutes wires into handlers.
type Services struct {
	Users        core.UserService
	Roles        core.RoleService
	Entitlements core.EntitlementService
	Invitations  core.InvitationService
	Provisioner  core.ProvisioningService
	Registry     *environments.Registry
	Selector     *environments.Selector
	Pool         *environments.ConnPool
}

// SetupRoutes configures all application routes. Global middleware (logging,
// recovery, CORS) is expected to be applied to the router beforehand.
func SetupRoutes(router *gin.Engine, authClient *auth.Client, svc Services, logger *zap.Logger) {
	authMW := middleware.NewAuthMiddleware(authClient, logger)
	permMW := middleware.NewPermissionMiddleware(svc.Users, logger)

	authHandler := NewAuthHandler(svc.Users, svc.Provisioner, logger)
	userHandler := NewUserHandler(svc.Users, svc.Roles, svc.Entitlements, logger)
	roleHandler := NewRoleHandler(svc.Roles, logger)
	invitationHandler := NewInvitationHandler(svc.Invitations, logger)
	environmentHandler := NewEnvironmentHandler(svc.Registry, svc.Selector, svc.Pool, svc.Users, logger)

	apiV1 := router.Group("/api/v1")
	{
		// Session endpoints: any authenticated identity may call these; the
		// provisioning gate decides whether a user record exists.
		session := apiV1.Group("/session", authMW.VerifyToken())
		{
			session.POST("/initialize", authHandler.InitializeSession)
			session.GET("/me", authHandler.Me)
		}

		// Self-service access request for identities without an invitation.
		apiV1.POST("/access-requests", authMW.VerifyToken(), invitationHandler.RequestAccess)

		// Environment selection for the caller's own session.
		env := apiV1.Group("/environments", authMW.VerifyToken())
		{
			env.GET("", environmentHandler.List)
			env.GET("/active", environmentHandler.Active)
			env.POST("/select", environmentHandler.Select)
			env.GET("/health/:key", environmentHandler.Health)
		}

		// Administration endpoints, gated on the admin route permission.
		admin := apiV1.Group("", authMW.VerifyToken(), permMW.Require(adminRoute))
		{
			users := admin.Group("/users")
			{
				users.GET("", userHandler.List)
				users.GET("/:uid", userHandler.Get)
				users.DELETE("/:uid", userHandler.Delete)
				users.POST("/:uid/roles", userHandler.GrantRole)
				users.DELETE("/:uid/roles/:roleName", userHandler.RevokeRole)
				users.POST("/:uid/environments", userHandler.GrantEnvironment)
				users.DELETE("/:uid/environments/:envKey", userHandler.RevokeEnvironment)
			}

			roles := admin.Group("/roles")
			{
				roles.GET("", roleHandler.List)
				roles.GET("/:name", roleHandler.Get)
				roles.POST("/:name", roleHandler.Create)
				roles.PUT("/:name", roleHandler.Update)
				roles.DELETE("/:name", roleHandler.Delete)
				roles.POST("/:name/reconcile", roleHandler.Reconcile)
			}

			invitations := admin.Group("/invitations")
			{
				invitations.GET("", invitationHandler.List)
				invitations.GET("/:id", invitationHandler.Get)
				invitations.POST("", invitationHandler.Create)
				invitations.POST("/:id/decision", invitationHandler.Decide)
				invitations.PATCH("/:id/expiry", invitationHandler.UpdateExpiry)
			}
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	logger.Info("API routes configured", zap.String("base", "/api/v1"))
}
