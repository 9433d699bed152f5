package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recoveryos/internal/billing"
	"recoveryos/models"
)

// PaymentHandler принимает события движения денег.
type PaymentHandler struct {
	db  *gorm.DB
	svc *billing.Service
}

func NewPaymentHandler(db *gorm.DB, svc *billing.Service) *PaymentHandler {
	return &PaymentHandler{db: db, svc: svc}
}

// CreatePayment регистрирует платеж. Платеж в статусе succeeded сразу
// проводится по леджеру и закрывает (полностью или частично) свой счет.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input billing.PaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.OrgID = orgID

	payment, err := h.svc.RecordPayment(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// ListPayments - платежи организации с фильтрами.
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var payments []models.Payment
	var totalRows int64

	query := h.db.Model(&models.Payment{}).Where("org_id = ?", orgID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if invoiceID := c.Query("invoiceId"); invoiceID != "" {
		query = query.Where("invoice_id = ?", invoiceID)
	}
	query.Count(&totalRows)

	if err := query.Scopes(Paginate(c)).Order("payment_date desc").Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, payments, totalRows))
}

// MarkSucceeded - колбэк провайдера: платеж прошел.
func (h *PaymentHandler) MarkSucceeded(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	paymentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.svc.MarkPaymentSucceeded(c.Request.Context(), orgID, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// RefundPayment возвращает зачтенный платеж со сторнированием проводки.
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	paymentID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	payment, err := h.svc.RecordRefund(c.Request.Context(), orgID, paymentID, loginFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

// SeedMappings устанавливает организации маппинги типов платежей на счета.
func (h *PaymentHandler) SeedMappings(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	if err := h.svc.SeedDefaultMappings(c.Request.Context(), orgID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Default payment type mappings installed"})
}
