package routes

import (
	"github.com/gin-gonic/gin"

	"recoveryos/internal/handlers"
	"recoveryos/internal/middleware"
)

// RegisterAPIRoutes регистрирует все маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup, h *HandlerSet) {
	apiGroup := api.Group("/api")
	{
		// --- ЛЕДЖЕР ---
		ledgerGroup := apiGroup.Group("/ledger")
		{
			accounts := ledgerGroup.Group("/accounts")
			{
				accounts.POST("", middleware.RequireRole("billing_admin"), h.Ledger.CreateAccount)
				accounts.GET("", h.Ledger.ListAccounts)
				accounts.POST("/seed", middleware.RequireRole("billing_admin"), h.Ledger.SeedChart)
				accounts.DELETE("/:id", middleware.RequireRole("billing_admin"), h.Ledger.DeactivateAccount)
				accounts.GET("/:code/balance", h.Ledger.GetBalance)
			}
			ledgerGroup.GET("/trial-balance", h.Ledger.TrialBalance)
			ledgerGroup.POST("/transactions", middleware.RequireRole("billing_admin"), h.Ledger.PostTransaction)
			ledgerGroup.POST("/transactions/:id/reverse", middleware.RequireRole("billing_admin"), h.Ledger.ReverseTransaction)
			ledgerGroup.GET("/entries", h.Ledger.ListEntries)
			ledgerGroup.GET("/entries/export", h.Ledger.ExportEntries)
		}

		// --- СЧЕТА ---
		invoices := apiGroup.Group("/invoices")
		{
			invoices.POST("", h.Invoice.CreateInvoice)
			invoices.GET("", h.Invoice.ListInvoices)
			invoices.GET("/archive/download", h.Invoice.DownloadInvoiceArchive)
			invoices.GET("/:id", h.Invoice.GetInvoice)
			invoices.POST("/:id/line-items", h.Invoice.AddLineItem)
			invoices.DELETE("/:id/line-items/:itemId", h.Invoice.RemoveLineItem)
			invoices.POST("/:id/send", h.Invoice.SendInvoice)
			invoices.POST("/:id/void", middleware.RequireRole("billing_admin"), h.Invoice.VoidInvoice)
		}

		// --- ПЛАТЕЖИ ---
		payments := apiGroup.Group("/payments")
		{
			payments.POST("", h.Payment.CreatePayment)
			payments.GET("", h.Payment.ListPayments)
			payments.POST("/:id/succeed", h.Payment.MarkSucceeded)
			payments.POST("/:id/refund", middleware.RequireRole("billing_admin"), h.Payment.RefundPayment)
			payments.POST("/mappings/seed", middleware.RequireRole("billing_admin"), h.Payment.SeedMappings)
		}

		// --- ЖИТЕЛИ ---
		residents := apiGroup.Group("/residents")
		{
			residents.POST("", h.Resident.CreateResident)
			residents.GET("", h.Resident.ListResidents)
			residents.GET("/:id", h.Resident.GetResident)
			residents.PUT("/:id", h.Resident.UpdateResident)
			residents.POST("/:id/discharge", h.Resident.DischargeResident)
		}

		// --- ОРГАНИЗАЦИЯ И НАСТРОЙКИ ---
		org := apiGroup.Group("/org")
		{
			org.GET("", h.Org.GetCurrentOrganization)
			org.GET("/members", h.Org.ListMemberships)
			org.GET("/settings/late-fee-rule", h.Settings.GetLateFeeRule)
			org.PUT("/settings/late-fee-rule", middleware.RequireRole("billing_admin"), h.Settings.UpsertLateFeeRule)
			org.GET("/settings/payment-type-mappings", h.Settings.ListPaymentTypeMappings)
			org.PUT("/settings/payment-type-mappings", middleware.RequireRole("billing_admin"), h.Settings.UpsertPaymentTypeMapping)
		}

		// --- ПЛАНОВЫЕ ЗАДАЧИ (дергает внешний cron) ---
		jobs := apiGroup.Group("/jobs")
		{
			jobs.POST("/overdue", h.Jobs.RunOverdue)
		}
	}
}

// RegisterAuthRoutes регистрирует публичные маршруты: вход, выход
// и онбординг новой организации.
func RegisterAuthRoutes(r *gin.Engine, auth *handlers.AuthHandler, org *handlers.OrgHandler) {
	r.POST("/login", auth.Login)
	r.GET("/logout", auth.Logout)
	r.POST("/organizations", org.CreateOrganization)
}

// HandlerSet собирает все хендлеры, чтобы не таскать их по одному.
type HandlerSet struct {
	Ledger   *handlers.LedgerHandler
	Invoice  *handlers.InvoiceHandler
	Payment  *handlers.PaymentHandler
	Resident *handlers.ResidentHandler
	Org      *handlers.OrgHandler
	Settings *handlers.SettingsHandler
	Jobs     *handlers.JobsHandler
}
