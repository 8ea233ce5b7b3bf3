package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agentdeck/agentdeck/internal/common/httpmw"
	"github.com/agentdeck/agentdeck/internal/common/logger"
	"github.com/agentdeck/agentdeck/internal/gateway"
	"github.com/agentdeck/agentdeck/internal/permission"
	permhandlers "github.com/agentdeck/agentdeck/internal/permission/handlers"
	sesshandlers "github.com/agentdeck/agentdeck/internal/session/handlers"
	"github.com/agentdeck/agentdeck/internal/session/service"
	"github.com/agentdeck/agentdeck/internal/supervisor"
	suphandlers "github.com/agentdeck/agentdeck/internal/supervisor/handlers"
	"github.com/agentdeck/agentdeck/internal/transcript"
	v1 "github.com/agentdeck/agentdeck/pkg/api/v1"
)

const serverName = "agentdeck"

type routerDeps struct {
	log         *logger.Logger
	sessions    *service.Service
	supervisor  *supervisor.Supervisor
	broker      *permission.Broker
	transcripts *transcript.Store
	hub         *gateway.Hub
}

// buildRouter assembles the middleware stack and every HTTP surface of the
// daemon on one engine.
func buildRouter(deps routerDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestLogger(deps.log, serverName))
	router.Use(httpmw.CORS())
	router.Use(httpmw.OtelTracing(serverName))

	health := func(c *gin.Context) {
		c.JSON(http.StatusOK, v1.OK(gin.H{"status": "ok"}))
	}
	router.GET("/health", health)

	api := router.Group("/api")
	api.GET("/health", health)
	sesshandlers.NewHandler(deps.sessions, deps.log).RegisterRoutes(api)
	suphandlers.NewHandler(deps.supervisor, deps.sessions, deps.log).RegisterRoutes(api)
	permhandlers.NewHandler(deps.broker, deps.log).RegisterRoutes(api)
	transcript.NewHandler(deps.transcripts, deps.log).RegisterRoutes(api)

	gateway.NewHandler(deps.hub, deps.log).RegisterRoutes(router)

	return router
}
