package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// LedgerHandler обслуживает план счетов, проводки и отчеты по леджеру.
type LedgerHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

func NewLedgerHandler(db *gorm.DB, svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{db: db, svc: svc}
}

type accountInput struct {
	Code            string `json:"code" binding:"required"`
	Name            string `json:"name" binding:"required"`
	AccountType     string `json:"accountType" binding:"required"`
	ParentAccountID *uint  `json:"parentAccountId"`
}

// CreateAccount добавляет счет в план счетов организации.
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input accountInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acc := models.LedgerAccount{
		OrgID:           orgID,
		Code:            input.Code,
		Name:            input.Name,
		AccountType:     input.AccountType,
		ParentAccountID: input.ParentAccountID,
	}
	if err := h.svc.CreateAccount(c.Request.Context(), &acc); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, acc)
}

// ListAccounts возвращает план счетов с пагинацией.
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var accounts []models.LedgerAccount
	var totalRows int64

	query := h.db.Model(&models.LedgerAccount{}).Where("org_id = ?", orgID)
	if accountType := c.Query("type"); accountType != "" {
		query = query.Where("account_type = ?", accountType)
	}
	query.Count(&totalRows)

	if err := query.Scopes(Paginate(c)).Order("code asc").Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch accounts"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, accounts, totalRows))
}

// DeactivateAccount выключает счет (системные защищены).
func (h *LedgerHandler) DeactivateAccount(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	accountID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeactivateAccount(c.Request.Context(), orgID, accountID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account deactivated"})
}

// SeedChart устанавливает стандартный план счетов. Идемпотентен.
func (h *LedgerHandler) SeedChart(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	if err := h.svc.SeedDefaultChart(c.Request.Context(), orgID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Default chart of accounts installed"})
}

// GetBalance отдает остаток счета в обеих конвенциях: сырой (дебет-кредит)
// и нормальной (рост счета = плюс).
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	code := c.Param("code")

	balance, err := h.svc.GetBalance(c.Request.Context(), orgID, code)
	if err != nil {
		respondError(c, err)
		return
	}
	normal, err := h.svc.GetNormalBalance(c.Request.Context(), orgID, code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":          code,
		"balance":       balance.StringFixed(2),
		"normalBalance": normal.StringFixed(2),
	})
}

// TrialBalance - оборотно-сальдовая ведомость организации.
func (h *LedgerHandler) TrialBalance(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	rows, err := h.svc.TrialBalance(c.Request.Context(), orgID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

type postTransactionInput struct {
	DebitAccountCode  string `json:"debitAccountCode" binding:"required"`
	CreditAccountCode string `json:"creditAccountCode" binding:"required"`
	AmountCents       int64  `json:"amountCents" binding:"required"`
	Description       string `json:"description"`
	ReferenceType     string `json:"referenceType"`
	ReferenceID       string `json:"referenceId"`
	IdempotencyKey    string `json:"idempotencyKey"`
}

// PostTransaction проводит ручную пару дебет/кредит.
func (h *LedgerHandler) PostTransaction(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var input postTransactionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	refType := input.ReferenceType
	if refType == "" {
		refType = models.ReferenceManual
	}
	txID, err := h.svc.PostTransaction(c.Request.Context(), ledger.PostingInput{
		OrgID:             orgID,
		DebitAccountCode:  input.DebitAccountCode,
		CreditAccountCode: input.CreditAccountCode,
		AmountCents:       input.AmountCents,
		Description:       input.Description,
		ReferenceType:     refType,
		ReferenceID:       input.ReferenceID,
		CreatedBy:         loginFromContext(c),
		IdempotencyKey:    input.IdempotencyKey,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactionId": txID})
}

// ReverseTransaction сторнирует проводку обратной парой.
func (h *LedgerHandler) ReverseTransaction(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	txID := c.Param("id")
	reversalID, err := h.svc.ReverseTransaction(c.Request.Context(), orgID, txID, loginFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactionId": reversalID, "reverses": txID})
}

type journalRow struct {
	ID              uint         `json:"id"`
	TransactionID   string       `json:"transactionId"`
	TransactionDate time.Time    `json:"transactionDate"`
	AccountCode     string       `json:"accountCode"`
	AccountName     string       `json:"accountName"`
	DebitAmount     models.Money `json:"debitAmount"`
	CreditAmount    models.Money `json:"creditAmount"`
	Description     string       `json:"description"`
	ReferenceType   string       `json:"referenceType"`
	ReferenceID     string       `json:"referenceId"`
}

func (h *LedgerHandler) journalQuery(c *gin.Context, orgID uint) *gorm.DB {
	query := h.db.Table("ledger_entries le").
		Joins("JOIN ledger_accounts la ON la.id = le.account_id").
		Where("le.org_id = ? AND le.deleted_at IS NULL", orgID)
	if code := c.Query("accountCode"); code != "" {
		query = query.Where("la.code = ?", code)
	}
	if refType := c.Query("referenceType"); refType != "" {
		query = query.Where("le.reference_type = ?", refType)
	}
	if from := c.Query("from"); from != "" {
		query = query.Where("le.transaction_date >= ?", from)
	}
	if to := c.Query("to"); to != "" {
		query = query.Where("le.transaction_date <= ?", to)
	}
	return query
}

const journalSelect = `
	le.id AS id,
	le.transaction_id AS transaction_id,
	le.transaction_date AS transaction_date,
	la.code AS account_code,
	la.name AS account_name,
	le.debit_amount AS debit_amount,
	le.credit_amount AS credit_amount,
	le.description AS description,
	le.reference_type AS reference_type,
	le.reference_id AS reference_id
`

// ListEntries - журнал проводок с фильтрами и пагинацией.
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	query := h.journalQuery(c, orgID)

	var totalRows int64
	query.Count(&totalRows)

	var rows []journalRow
	if err := query.Select(journalSelect).
		Scopes(Paginate(c)).
		Order("le.transaction_date DESC, le.id DESC").
		Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ledger entries"})
		return
	}
	if rows == nil {
		rows = make([]journalRow, 0)
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, rows, totalRows))
}

// ExportEntries выгружает журнал проводок в Excel.
func (h *LedgerHandler) ExportEntries(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var rows []journalRow
	if err := h.journalQuery(c, orgID).Select(journalSelect).
		Order("le.transaction_date ASC, le.id ASC").
		Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch data for export"})
		return
	}

	f := excelize.NewFile()
	sheetName := "Journal"
	index, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Transaction ID", "Account Code", "Account", "Debit", "Credit", "Description", "Reference Type", "Reference"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, e := range rows {
		row := i + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), e.TransactionDate.Format("2006-01-02"))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), e.TransactionID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), e.AccountCode)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), e.AccountName)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), e.DebitAmount.StringFixed(2))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), e.CreditAmount.StringFixed(2))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), e.Description)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), e.ReferenceType)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), e.ReferenceID)
	}

	fileName := fmt.Sprintf("ledger_journal_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	if err := f.Write(c.Writer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
	}
}
