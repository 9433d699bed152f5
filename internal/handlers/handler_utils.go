package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recoveryos/internal/apperr"
)

// PaginatedResponse - стандартная форма любого постраничного ответа API.
type PaginatedResponse struct {
	Data        interface{} `json:"data"`
	TotalRows   int64       `json:"totalRows"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
	PageSize    int         `json:"pageSize"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.Query("pageSize"))
	switch {
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	case pageSize <= 0:
		pageSize = DefaultPageSize
	}
	return page, pageSize
}

// Paginate - GORM-скоуп, накладывающий offset/limit из query-параметров
// page и pageSize.
func Paginate(c *gin.Context) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		page, pageSize := pageParams(c)
		return db.Offset((page - 1) * pageSize).Limit(pageSize)
	}
}

// CreatePaginatedResponse собирает стандартный постраничный ответ.
func CreatePaginatedResponse(c *gin.Context, data interface{}, totalRows int64) PaginatedResponse {
	page, pageSize := pageParams(c)
	totalPages := 0
	if totalRows > 0 {
		totalPages = int(math.Ceil(float64(totalRows) / float64(pageSize)))
	}
	return PaginatedResponse{
		Data:        data,
		TotalRows:   totalRows,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
	}
}

// orgIDFromContext достает ID организации, положенный auth-middleware.
func orgIDFromContext(c *gin.Context) (uint, bool) {
	v, ok := c.Get("org_id")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Organization context missing"})
		return 0, false
	}
	orgID, ok := v.(uint)
	if !ok || orgID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Organization context missing"})
		return 0, false
	}
	return orgID, true
}

func loginFromContext(c *gin.Context) string {
	if v, ok := c.Get("login"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}

// respondError переводит типизированную ошибку ядра в HTTP-статус.
// Retryable-ошибки отдаем как 409/503, чтобы клиент знал, что можно повторить.
func respondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		slog.Error("Необработанная ошибка в хендлере", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	status := http.StatusInternalServerError
	switch ae.Code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeAccountNotFound, apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeInvalidState, apperr.CodeConcurrencyConflict:
		status = http.StatusConflict
	case apperr.CodeStorage:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": ae.Message, "code": ae.Code, "retryable": ae.Retryable})
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}
