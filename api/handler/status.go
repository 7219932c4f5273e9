package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/monitor"
)

// recentRuns bounds how many past summaries the status endpoint returns.
const recentRuns = 10

// Status returns a handler for GET /api/v1/status.
//
// watching reports whether the process runs in daemon mode (cycles repeat on
// a timer) as opposed to serving a one-shot run.
func Status(d *monitor.Driver, hist *history.History, watching bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.StatusResponse{
			Watching: watching,
			Running:  d.Running(),
			LastRun:  hist.Last(),
			Recent:   hist.Recent(recentRuns),
		})
	}
}
