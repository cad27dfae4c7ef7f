package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// cacheMetrics returns the aggregated cache metrics summary. Admin only.
func (s *Server) cacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.metrics.Summary())
}

// cacheQueryMetrics returns counters for a single query name, or 404 when
// the query has never been recorded.
func (s *Server) cacheQueryMetrics(c *gin.Context) {
	name := c.Param("name")

	stats, ok := s.metrics.QueryStats(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("No metrics found for query: %s", name)})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// resetCacheMetrics zeroes all cache counters and stamps a new reset point.
func (s *Server) resetCacheMetrics(c *gin.Context) {
	s.metrics.Reset()
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Cache metrics reset successfully",
	})
}

type invalidateRequest struct {
	Key     string `json:"key"`
	Pattern string `json:"pattern"`
}

// invalidateCache removes a single cache entry, or every entry matching a
// glob pattern when one is given.
func (s *Server) invalidateCache(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Key == "" && req.Pattern == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key or pattern required"})
		return
	}

	if req.Pattern != "" {
		count, err := s.store.InvalidateByPattern(c.Request.Context(), req.Pattern)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Cache error: %v", err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": fmt.Sprintf("Invalidated %d cache keys matching pattern: %s", count, req.Pattern),
		})
		return
	}

	if err := s.store.Invalidate(c.Request.Context(), req.Key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Cache error: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Cache key %s invalidated", req.Key),
	})
}
