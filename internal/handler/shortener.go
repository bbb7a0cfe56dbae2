package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jack/url-shortener-platform/internal/model"
	"github.com/jack/url-shortener-platform/internal/repository"
	"github.com/jack/url-shortener-platform/internal/service"
)

type ShortenerHandler struct {
	service *service.ShortenerService
}

func NewShortenerHandler(service *service.ShortenerService) *ShortenerHandler {
	return &ShortenerHandler{service: service}
}

func (h *ShortenerHandler) CreateShortURL(c *gin.Context) {
	var req model.ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body: " + err.Error(),
		})
		return
	}

	resp, err := h.service.CreateShortURL(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid URL",
			})
			return
		}
		if errors.Is(err, repository.ErrDuplicateAlias) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "alias_taken",
				"message": "Custom alias already exists",
			})
			return
		}
		log.Printf("create short url failed: ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create short URL",
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ShortenerHandler) LookupByUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "user_id must be an integer",
		})
		return
	}

	infos, err := h.service.ListByUser(c.Request.Context(), int32(userID))
	if err != nil {
		log.Printf("lookup by user failed: userID=%d err=%v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to look up URLs",
		})
		return
	}

	c.JSON(http.StatusOK, infos)
}

func (h *ShortenerHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
