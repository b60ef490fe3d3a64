package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classroom-chat/internal/realtime"
	"classroom-chat/internal/telemetry"
)

// SubscriberCounter reports live subscriptions per channel. The in-process
// hub implements it; the Redis broker does not.
type SubscriberCounter interface {
	Subscribers(channel string) int
}

// RegisterDebugRoutes wires debug-only endpoints. counter may be nil.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, counter SubscriberCounter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), telemetry.LevelInfo, "audit test", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/rooms/:room_id/subscribers", func(c *gin.Context) {
		if counter == nil {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "subscriber counts unavailable for this realtime backend"})
			return
		}
		channel := realtime.ChannelName(c.Param("room_id"))
		c.JSON(http.StatusOK, gin.H{"channel": channel, "subscribers": counter.Subscribers(channel)})
	})
}
