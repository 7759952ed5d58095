package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/worker"
	"go.uber.org/zap"
)

// handleBroadcast emails every marketing opt-in. With ?async=1 and a queue
// configured the run is handed to the worker.
func handleBroadcast(d *worker.Dispatcher, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req worker.BroadcastPayload
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.BadRequest(c, "Invalid request body")
			return
		}
		async := c.Query("async") == "1" || c.Query("async") == "true"

		res, taskID, err := d.Broadcast(c.Request.Context(), req, async)
		switch {
		case errors.Is(err, worker.ErrEmptyBroadcast):
			respond.BadRequest(c, "subject and html or text are required")
			return
		case err != nil:
			log.Error("broadcast failed", zap.String("admin_id", auth.UserID(c)), zap.Error(err))
			respond.Internal(c, "Broadcast failed", err)
			return
		}

		if taskID != "" {
			log.Info("broadcast queued", zap.String("admin_id", auth.UserID(c)), zap.String("task_id", taskID))
			respond.JSON(c, http.StatusAccepted, gin.H{"queued": true, "task_id": taskID})
			return
		}
		respond.OK(c, gin.H{
			"sent":   res.Sent,
			"failed": res.Failed,
			"total":  res.Total,
			"errors": res.Errors,
		})
	}
}
