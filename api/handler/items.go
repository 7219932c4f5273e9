package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/history"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/store"
)

// Items returns a handler for GET /api/v1/items.
//
// Lists every tracked listing with the most recent outcome recorded for its
// row. Rows that have not been processed since startup carry no outcome.
func Items(st store.RowStore, hist *history.History) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := st.Items(c.Request.Context())
		if err != nil {
			me := models.Categorize(err, models.ErrCodeStore, "load tracked items")
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: me.ToDetail(),
			})
			return
		}

		statuses := make([]models.ItemStatus, 0, len(items))
		for _, it := range items {
			s := models.ItemStatus{Item: it}
			if o, ok := hist.Outcome(it.Row); ok {
				s.LastOutcome = &o
			}
			statuses = append(statuses, s)
		}

		c.JSON(http.StatusOK, models.ItemsResponse{
			Count: len(statuses),
			Items: statuses,
		})
	}
}
