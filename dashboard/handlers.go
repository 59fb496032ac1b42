package dashboard

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// GetDashboardHandler serves the snapshot. ?asOf=YYYY-MM-DD builds an
// uncached view for an earlier day (velocity windows and month series end
// there); the default is the cached snapshot for today.
func GetDashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var asOf *time.Time
		if v := strings.TrimSpace(c.Query("asOf")); v != "" {
			day, err := time.ParseInLocation("2006-01-02", v, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "asOf must be YYYY-MM-DD"})
				return
			}
			asOf = &day
		}

		payload, err := GetOrBuild(c.Request.Context(), asOf)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

func RebuildHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := ForceRebuild(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, payload)
	}
}

// KPIHandler serves one named metric; ?property= filters to one property and
// ?asOf=YYYY-MM-DD evaluates it against an uncached historical view.
func KPIHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var asOf *time.Time
		if v := strings.TrimSpace(c.Query("asOf")); v != "" {
			day, err := time.ParseInLocation("2006-01-02", v, time.UTC)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "asOf must be YYYY-MM-DD"})
				return
			}
			asOf = &day
		}

		payload, err := GetOrBuild(c.Request.Context(), asOf)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := KPI(payload, c.Param("name"), strings.TrimSpace(c.Query("property")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "known": KPINames()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := GetOrBuild(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f, err := ExportExcel(payload)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := "leasing-dashboard-" + payload.AsOf + ".xlsx"
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			c.Status(http.StatusInternalServerError)
		}
	}
}

// RegisterRoutes mounts the dashboard surface under the given group.
func RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/dashboard", GetDashboardHandler())
	rg.POST("/dashboard/rebuild", RebuildHandler())
	rg.GET("/dashboard/export", ExportHandler())
	rg.GET("/kpi/:name", KPIHandler())
}
