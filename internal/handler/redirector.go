package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jack/url-shortener-platform/internal/repository"
	"github.com/jack/url-shortener-platform/internal/service"
)

// RedirectorHandler resolves short codes. The resolution result is a JSON
// body rather than an HTTP redirect: the gateway consumes and re-wraps it.
type RedirectorHandler struct {
	service *service.RedirectorService
}

func NewRedirectorHandler(service *service.RedirectorService) *RedirectorHandler {
	return &RedirectorHandler{service: service}
}

func (h *RedirectorHandler) Resolve(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Short code is required",
		})
		return
	}

	resp, err := h.service.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Short URL not found",
			})
			return
		}
		if errors.Is(err, repository.ErrURLExpired) {
			c.JSON(http.StatusGone, gin.H{
				"error":   "expired",
				"message": "This short URL has expired",
			})
			return
		}
		log.Printf("resolve failed: code=%s ip=%s err=%v", code, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to resolve URL",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *RedirectorHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
