package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/incidentnow/incident-service/api"
	"github.com/incidentnow/incident-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const pathSwagger = "/swagger"

func New(
	incidents *handler.IncidentHandler,
	owners *handler.OwnerHandler,
	engineers *handler.EngineerHandler,
	statistics *handler.StatisticsHandler,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", handler.Health)
	r.GET("/ready", handler.Ready)
	r.GET(pathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, pathSwagger+"/") })
	r.GET(pathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = pathSwagger + "/index.html"
			c.Request.RequestURI = pathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	v1 := r.Group("/api/v1")
	{
		v1.POST("/incidents", incidents.Create)
		v1.GET("/incidents", incidents.List)
		v1.GET("/incidents/:id", incidents.Get)
		v1.PUT("/incidents/:id", incidents.Update)
		v1.PATCH("/incidents/:id", incidents.Patch)
		v1.DELETE("/incidents/:id", incidents.Delete)
		v1.POST("/incidents/:id/resolve", incidents.Resolve)
		v1.POST("/incidents/:id/close", incidents.Close)
		v1.POST("/incidents/:id/reopen", incidents.Reopen)
		v1.POST("/incidents/:id/assign", incidents.Assign)
		v1.GET("/incidents/:id/comments", incidents.ListComments)
		v1.POST("/incidents/:id/comments", incidents.AddComment)
		v1.GET("/incidents/:id/timeline", incidents.Timeline)

		v1.POST("/owners", owners.Create)
		v1.GET("/owners", owners.List)
		v1.GET("/owners/:id", owners.Get)
		v1.PUT("/owners/:id", owners.Update)
		v1.PATCH("/owners/:id", owners.Patch)
		v1.DELETE("/owners/:id", owners.Delete)
		v1.GET("/owners/:id/incidents", owners.Incidents)
		v1.POST("/auth/login", owners.Login)

		v1.POST("/support-engineers", engineers.Create)
		v1.GET("/support-engineers", engineers.List)
		v1.GET("/support-engineers/by-category/:category", engineers.ByCategory)
		v1.GET("/support-engineers/:id", engineers.Get)
		v1.PUT("/support-engineers/:id", engineers.Update)
		v1.PATCH("/support-engineers/:id", engineers.Patch)
		v1.DELETE("/support-engineers/:id", engineers.Delete)
		v1.GET("/support-engineers/:id/assigned-incidents", engineers.AssignedIncidents)

		v1.GET("/statistics/summary", statistics.Summary)
		v1.GET("/statistics/by-status", statistics.ByStatus)
		v1.GET("/statistics/by-priority", statistics.ByPriority)
		v1.GET("/statistics/by-category", statistics.ByCategory)
		v1.GET("/statistics/by-owner", statistics.TopOwners)
		v1.GET("/statistics/resolution-time", statistics.ResolutionTime)
		v1.GET("/statistics/trends", statistics.Trends)
	}

	return r
}
