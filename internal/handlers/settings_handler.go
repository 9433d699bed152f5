package handlers

import (
	"errors"
	"net/http"

	"github.com/Knetic/govaluate"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recoveryos/models"
)

// SettingsHandler обслуживает биллинговые настройки организации:
// правило пени и маппинги типов платежей на счета.
type SettingsHandler struct {
	DB *gorm.DB
}

func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{DB: db}
}

// GetLateFeeRule отдает правило пени организации (или 404, если не настроено).
func (h *SettingsHandler) GetLateFeeRule(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var rule models.LateFeeRule
	err := h.DB.Where("org_id = ?", orgID).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Late fee rule is not configured"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch late fee rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

type lateFeeRuleInput struct {
	Formula   string `json:"formula" binding:"required"`
	GraceDays int    `json:"graceDays"`
	Enabled   bool   `json:"enabled"`
}

// UpsertLateFeeRule создает или обновляет правило пени. Формула проверяется
// на разборчивость сразу, чтобы плановая задача не спотыкалась о мусор.
func (h *SettingsHandler) UpsertLateFeeRule(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input lateFeeRuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.GraceDays < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "graceDays must not be negative"})
		return
	}
	if _, err := govaluate.NewEvaluableExpression(input.Formula); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid formula: " + err.Error()})
		return
	}

	var rule models.LateFeeRule
	err := h.DB.Where("org_id = ?", orgID).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rule = models.LateFeeRule{
			OrgID:     orgID,
			Formula:   input.Formula,
			GraceDays: input.GraceDays,
			Enabled:   input.Enabled,
		}
		if err := h.DB.Create(&rule).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save late fee rule"})
			return
		}
		c.JSON(http.StatusCreated, rule)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch late fee rule"})
		return
	}
	if err := h.DB.Model(&rule).Updates(map[string]interface{}{
		"formula":    input.Formula,
		"grace_days": input.GraceDays,
		"enabled":    input.Enabled,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save late fee rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// ListPaymentTypeMappings возвращает маппинги типов платежей на счета.
func (h *SettingsHandler) ListPaymentTypeMappings(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var mappings []models.PaymentTypeMapping
	if err := h.DB.Where("org_id = ?", orgID).Order("payment_type").Find(&mappings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment type mappings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": mappings})
}

type mappingInput struct {
	PaymentType       string `json:"paymentType" binding:"required"`
	DebitAccountCode  string `json:"debitAccountCode" binding:"required"`
	CreditAccountCode string `json:"creditAccountCode" binding:"required"`
}

// UpsertPaymentTypeMapping настраивает, по каким счетам проводится тип платежа.
// Коды счетов должны существовать в плане счетов организации.
func (h *SettingsHandler) UpsertPaymentTypeMapping(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input mappingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, code := range []string{input.DebitAccountCode, input.CreditAccountCode} {
		var count int64
		h.DB.Model(&models.LedgerAccount{}).
			Where("org_id = ? AND code = ?", orgID, code).Count(&count)
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown account code: " + code})
			return
		}
	}

	var mapping models.PaymentTypeMapping
	err := h.DB.Where("org_id = ? AND payment_type = ?", orgID, input.PaymentType).First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		mapping = models.PaymentTypeMapping{
			OrgID:             orgID,
			PaymentType:       input.PaymentType,
			DebitAccountCode:  input.DebitAccountCode,
			CreditAccountCode: input.CreditAccountCode,
		}
		if err := h.DB.Create(&mapping).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save mapping"})
			return
		}
		c.JSON(http.StatusCreated, mapping)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch mapping"})
		return
	}
	if err := h.DB.Model(&mapping).Updates(map[string]interface{}{
		"debit_account_code":  input.DebitAccountCode,
		"credit_account_code": input.CreditAccountCode,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save mapping"})
		return
	}
	c.JSON(http.StatusOK, mapping)
}
