package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/eventlog-export-service/internal/models"
)

// SystemReader is the read side of the exporter. *export.Session implements it.
type SystemReader interface {
	LastPosition(ctx context.Context, system string) (*models.Position, error)
	MaxPersistedPeriod(ctx context.Context, system string) (time.Time, error)
	Exists(ctx context.Context, system string, rowID int64, period time.Time) (bool, error)
}

// parseRFC3339 parses an RFC3339 timestamp and normalizes it to UTC.
func parseRFC3339(ts string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// RegisterSystemRoutes registers the per-system inspection endpoints on a
// group whose path carries :system.
//
// GET position              - last checkpointed reader position (404 if none)
// GET max-period            - newest stored Period
// GET rows/:id/exists       - ?period=RFC3339, whether the row is stored
func RegisterSystemRoutes(r gin.IRoutes, rd SystemReader) {
	r.GET("/position", func(c *gin.Context) {
		system := c.Param("system")

		pos, err := rd.LastPosition(c.Request.Context(), system)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkpoint query failed"})
			return
		}
		if pos == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no checkpoint for system"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"system":   system,
			"position": pos,
		})
	})

	r.GET("/max-period", func(c *gin.Context) {
		system := c.Param("system")

		period, err := rd.MaxPersistedPeriod(c.Request.Context(), system)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"system":     system,
			"max_period": period.Format(time.RFC3339),
			// The floor is returned when nothing is stored yet.
			"empty": period.Equal(models.MinPeriod),
		})
	})

	r.GET("/rows/:id/exists", func(c *gin.Context) {
		system := c.Param("system")

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}

		periodStr := c.Query("period")
		if periodStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period required"})
			return
		}
		period, err := parseRFC3339(periodStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be RFC3339"})
			return
		}

		exists, err := rd.Exists(c.Request.Context(), system, id, period)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"system": system,
			"id":     id,
			"period": period.Format(time.RFC3339),
			"exists": exists,
		})
	})
}
