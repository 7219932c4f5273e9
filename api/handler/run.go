package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/monitor"
)

// Run returns a handler for POST /api/v1/run.
//
// launch starts one refresh cycle in the background; the caller polls
// GET /status for the result. Two concurrent POSTs can both pass the
// Running check, but the driver's own guard makes the loser a no-op.
func Run(d *monitor.Driver, launch func()) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Running() {
			c.JSON(http.StatusConflict, models.RunResponse{
				Started: false,
				Message: "a refresh cycle is already running",
			})
			return
		}

		launch()
		c.JSON(http.StatusAccepted, models.RunResponse{
			Started: true,
			Message: "refresh cycle started",
		})
	}
}
