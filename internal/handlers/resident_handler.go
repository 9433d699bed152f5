package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recoveryos/models"
)

// ResidentHandler инкапсулирует зависимости для работы с жителями.
type ResidentHandler struct {
	DB *gorm.DB
}

// NewResidentHandler создает новый экземпляр ResidentHandler.
func NewResidentHandler(db *gorm.DB) *ResidentHandler {
	return &ResidentHandler{DB: db}
}

type residentInput struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
}

// ListResidents возвращает жителей организации. Поддерживает поиск по имени,
// фильтр по статусу и выдачу полного списка через ?all=true (для выпадающих
// списков на формах).
func (h *ResidentHandler) ListResidents(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var residents []models.Resident

	query := h.DB.Model(&models.Resident{}).Where("org_id = ?", orgID)

	if search := c.Query("search"); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(last_name) LIKE ? OR LOWER(first_name) LIKE ?", pattern, pattern)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	if c.Query("all") == "true" {
		if err := query.Order("last_name, first_name").Find(&residents).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch residents"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": residents})
		return
	}

	var totalRows int64
	query.Count(&totalRows)

	if err := query.Scopes(Paginate(c)).Order("last_name, first_name").Find(&residents).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch residents"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, residents, totalRows))
}

// CreateResident регистрирует нового жителя.
func (h *ResidentHandler) CreateResident(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input residentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resident := models.Resident{
		OrgID:     orgID,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     input.Phone,
		Email:     input.Email,
		Status:    "active",
	}
	if err := h.DB.Create(&resident).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create resident"})
		return
	}
	c.JSON(http.StatusCreated, resident)
}

// GetResident отдает карточку жителя.
func (h *ResidentHandler) GetResident(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	residentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var resident models.Resident
	err := h.DB.Where("org_id = ?", orgID).First(&resident, residentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resident not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resident"})
		return
	}
	c.JSON(http.StatusOK, resident)
}

// UpdateResident обновляет контактные данные жителя.
func (h *ResidentHandler) UpdateResident(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	residentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var input residentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var resident models.Resident
	err := h.DB.Where("org_id = ?", orgID).First(&resident, residentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resident not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resident"})
		return
	}
	if err := h.DB.Model(&resident).Updates(map[string]interface{}{
		"first_name": input.FirstName,
		"last_name":  input.LastName,
		"phone":      input.Phone,
		"email":      input.Email,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update resident"})
		return
	}
	c.JSON(http.StatusOK, resident)
}

// DischargeResident помечает жителя выбывшим. Записи не удаляются:
// на жителя ссылаются счета и платежи.
func (h *ResidentHandler) DischargeResident(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	residentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	res := h.DB.Model(&models.Resident{}).
		Where("org_id = ? AND id = ?", orgID, residentID).
		Update("status", "discharged")
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to discharge resident"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resident not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resident discharged"})
}
