package timesync

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler answers time probes with the server's current time. The response
// shape matches what Sync expects, so any instance can act as the trusted
// source for another. Deliberately unauthenticated and envelope-free: probes
// must stay cheap and the round trip short.
func Handler(clock Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, probeResponse{ServerTimeMs: clock.Now().UnixMilli()})
	}
}
