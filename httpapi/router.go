package httpapi

import (
	"fmt"
	"time"

	"github.com/FabioFlo/asd-platform-sub001/logger"
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, l logger.Logger) *gin.Engine {
	l = logger.OrNop(l)
	h.SetLogger(l)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(l))

	router.GET("/healthz", h.Health)
	api := router.Group("/api")
	{
		api.GET("/asd/:asdId/dashboard", h.GetDashboard)
		api.GET("/satellites", h.ListSatellites)
		api.GET("/satellites/:disciplina/players/:personId/summary", h.GetPlayerSummary)
		api.GET("/satellites/:disciplina/players/:personId/profile", h.GetPlayerProfile)
		api.GET("/satellites/:disciplina/roster", h.GetRoster)
	}
	return router
}

func requestLogger(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.Debug(fmt.Sprintf("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start)))
	}
}
