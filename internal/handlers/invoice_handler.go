package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/divan/num2words"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"recoveryos/internal/billing"
	"recoveryos/models"
)

// InvoiceHandler обслуживает счета резидентам.
type InvoiceHandler struct {
	db  *gorm.DB
	svc *billing.Service
}

func NewInvoiceHandler(db *gorm.DB, svc *billing.Service) *InvoiceHandler {
	return &InvoiceHandler{db: db, svc: svc}
}

// CreateInvoice создает черновик счета с хотя бы одной строкой.
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input billing.CreateInvoiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input.OrgID = orgID

	inv, err := h.svc.CreateInvoice(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// ListInvoices возвращает счета организации с фильтром по статусу и резиденту.
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var invoices []models.Invoice
	var totalRows int64

	query := h.db.Model(&models.Invoice{}).Where("org_id = ?", orgID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if residentID := c.Query("residentId"); residentID != "" {
		query = query.Where("resident_id = ?", residentID)
	}
	query.Count(&totalRows)

	if err := query.Preload("LineItems").Scopes(Paginate(c)).
		Order("created_at desc").Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invoices"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, invoices, totalRows))
}

// totalInWords пишет сумму прописью для печатной формы счета.
func totalInWords(total models.Money) string {
	dollars := total.IntPart()
	cents := total.Sub(decimal.NewFromInt(dollars)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("%s dollars %02d cents", num2words.Convert(int(dollars)), cents)
}

// GetInvoice отдает счет со строками и суммой прописью.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	invoiceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(c.Request.Context(), orgID, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invoice":      inv,
		"totalInWords": totalInWords(inv.Total),
	})
}

// AddLineItem добавляет строку в черновик.
func (h *InvoiceHandler) AddLineItem(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	invoiceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var item billing.LineItemInput
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inv, err := h.svc.AddLineItem(c.Request.Context(), orgID, invoiceID, item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// RemoveLineItem удаляет строку черновика.
func (h *InvoiceHandler) RemoveLineItem(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	invoiceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseUintParam(c, "itemId")
	if !ok {
		return
	}
	inv, err := h.svc.RemoveLineItem(c.Request.Context(), orgID, invoiceID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// SendInvoice переводит черновик в pending.
func (h *InvoiceHandler) SendInvoice(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	invoiceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Send(c.Request.Context(), orgID, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// VoidInvoice аннулирует счет.
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	invoiceID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.svc.Void(c.Request.Context(), orgID, invoiceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DownloadInvoiceArchive выгружает все счета организации в CSV.
func (h *InvoiceHandler) DownloadInvoiceArchive(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var invoices []models.Invoice
	if err := h.db.Where("org_id = ?", orgID).
		Order("created_at desc").Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invoices from database"})
		return
	}
	if len(invoices) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No invoices found to export"})
		return
	}

	b := &bytes.Buffer{}
	b.Write([]byte{0xEF, 0xBB, 0xBF}) // BOM for UTF-8

	w := csv.NewWriter(b)
	w.Comma = ';'

	headers := []string{
		"ID", "Invoice Number", "Resident ID", "Status", "Issue Date",
		"Due Date", "Subtotal", "Tax", "Total", "Paid", "Due",
	}
	if err := w.Write(headers); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write CSV header"})
		return
	}

	for _, inv := range invoices {
		record := []string{
			strconv.Itoa(int(inv.ID)), inv.InvoiceNumber,
			strconv.Itoa(int(inv.ResidentID)), inv.Status,
			inv.IssueDate.Format("2006-01-02"), inv.DueDate.Format("2006-01-02"),
			inv.Subtotal.StringFixed(2), inv.TaxAmount.StringFixed(2),
			inv.Total.StringFixed(2), inv.AmountPaid.StringFixed(2),
			inv.AmountDue.StringFixed(2),
		}
		if err := w.Write(record); err != nil {
			continue
		}
	}
	w.Flush()

	if err := w.Error(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error writing CSV data"})
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename=invoices_export.csv")
	c.Data(http.StatusOK, "text/csv", b.Bytes())
}
