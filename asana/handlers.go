package asana

import (
	"io"
	"net/http"
	"strings"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProxyHandler forwards the request to the Asana API, attaching the cached
// bearer token. The response body and status are passed through unchanged
// so the frontend can consume Asana's envelope directly.
func ProxyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		cl := getClient()

		token, err := cl.token(c.Request.Context())
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field": "asana",
			}).Error("token unavailable: " + err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": "asana is not configured"})
			return
		}

		target := cl.baseURL + "/" + strings.TrimPrefix(c.Param("path"), "/")
		if raw := c.Request.URL.RawQuery; raw != "" {
			target += "?" + raw
		}

		req, err := http.NewRequestWithContext(c.Request.Context(), c.Request.Method, target, c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if ct := c.GetHeader("Content-Type"); ct != "" {
			req.Header.Set("Content-Type", ct)
		}

		resp, err := cl.http.Do(req)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":  "asana",
				"target": target,
			}).Error("proxy request failed: " + err.Error())
			c.JSON(http.StatusBadGateway, gin.H{"error": "asana request failed"})
			return
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "" {
			c.Writer.Header().Set("Content-Type", ct)
		}
		c.Status(resp.StatusCode)
		_, _ = io.Copy(c.Writer, resp.Body)
	}
}

func RegisterRoutes(rg *gin.RouterGroup) {
	rg.Any("/asana/*path", ProxyHandler())
}
