package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recoveryos/internal/billing"
	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// newTestRouter поднимает API на in-memory SQLite с подменой auth-middleware:
// контекст организации кладется напрямую, без JWT.
func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, uint, uint) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.InvoiceSequence{},
		&models.LedgerAccount{},
		&models.LedgerEntry{},
		&models.LedgerIdempotencyKey{},
		&models.Resident{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Payment{},
		&models.PaymentTypeMapping{},
		&models.LateFeeRule{},
	))

	lsvc := ledger.NewService(db, nil)
	bsvc := billing.NewService(db, lsvc)

	ctx := context.Background()
	org := models.Organization{Name: "Serenity House", Slug: "SRH"}
	require.NoError(t, db.Create(&org).Error)
	require.NoError(t, lsvc.SeedDefaultChart(ctx, org.ID))
	require.NoError(t, bsvc.SeedDefaultMappings(ctx, org.ID))
	resident := models.Resident{OrgID: org.ID, FirstName: "John", LastName: "Doe"}
	require.NoError(t, db.Create(&resident).Error)

	r := gin.New()
	api := r.Group("/api", func(c *gin.Context) {
		c.Set("user_id", uint(1))
		c.Set("org_id", org.ID)
		c.Set("login", "tester")
		c.Set("role", "owner")
		c.Next()
	})

	ledgerHandler := NewLedgerHandler(db, lsvc)
	invoiceHandler := NewInvoiceHandler(db, bsvc)

	api.POST("/ledger/transactions", ledgerHandler.PostTransaction)
	api.GET("/ledger/accounts/:code/balance", ledgerHandler.GetBalance)
	api.GET("/ledger/trial-balance", ledgerHandler.TrialBalance)
	api.POST("/invoices", invoiceHandler.CreateInvoice)
	api.GET("/invoices/:id", invoiceHandler.GetInvoice)
	api.POST("/invoices/:id/send", invoiceHandler.SendInvoice)
	api.POST("/invoices/:id/line-items", invoiceHandler.AddLineItem)

	// Маршрут без контекста организации - для проверки 401.
	r.GET("/bare/trial-balance", ledgerHandler.TrialBalance)

	return r, db, org.ID, resident.ID
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPostTransactionEndpoint(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/ledger/transactions", gin.H{
		"debitAccountCode":  "1100",
		"creditAccountCode": "4000",
		"amountCents":       80000,
		"description":       "Monthly program fee",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["transactionId"])

	// Остаток виден сразу в обеих конвенциях.
	w = doJSON(t, r, http.MethodGet, "/api/ledger/accounts/4000/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	assert.Equal(t, "-800.00", balance["balance"])
	assert.Equal(t, "800.00", balance["normalBalance"])
}

func TestPostTransactionEndpointErrors(t *testing.T) {
	r, _, _, _ := newTestRouter(t)

	// Неизвестный счет - 404 с кодом ошибки ядра.
	w := doJSON(t, r, http.MethodPost, "/api/ledger/transactions", gin.H{
		"debitAccountCode":  "9999",
		"creditAccountCode": "1000",
		"amountCents":       100,
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ACCOUNT_NOT_FOUND", resp["code"])

	// Обязательные поля валидирует binding.
	w = doJSON(t, r, http.MethodPost, "/api/ledger/transactions", gin.H{
		"debitAccountCode": "1000",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Без контекста организации - 401.
	w = doJSON(t, r, http.MethodGet, "/bare/trial-balance", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInvoiceEndpoints(t *testing.T) {
	r, _, _, residentID := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/invoices", gin.H{
		"residentId": residentID,
		"lineItems": []gin.H{
			{"description": "Monthly program fee", "paymentType": "program_fee", "quantity": "1", "unitPrice": "800.00"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var inv models.Invoice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &inv))
	assert.Equal(t, models.InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "INV-SRH-00001", inv.InvoiceNumber)

	// Печатная форма включает сумму прописью.
	w = doJSON(t, r, http.MethodGet, "/api/invoices/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		TotalInWords string `json:"totalInWords"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Contains(t, detail.TotalInWords, "eight hundred")

	w = doJSON(t, r, http.MethodPost, "/api/invoices/1/send", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// После отправки строки менять нельзя: конфликт состояния.
	w = doJSON(t, r, http.MethodPost, "/api/invoices/1/line-items", gin.H{
		"description": "Extra",
		"paymentType": "program_fee",
		"quantity":    "1",
		"unitPrice":   "10.00",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}
