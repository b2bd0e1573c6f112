package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
)

// registerDebugRoutes wires debug-only endpoints. Disabled outside
// development.
func (s *Server) registerDebugRoutes(router *gin.Engine, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		s.audit.Emit(c.Request.Context(), "info", "audit test", observability.MetaFromRequest(c.Request), "")
		c.JSON(http.StatusOK, ok(gin.H{"status": "ok"}))
	})

	router.GET("/debug/hub", func(c *gin.Context) {
		roomID := c.Query("chatRoomId")
		c.JSON(http.StatusOK, ok(gin.H{
			"roomSize": s.hub.RoomSize(roomID),
		}))
	})
}
