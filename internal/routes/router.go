package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recoveryos/internal/billing"
	"recoveryos/internal/handlers"
	"recoveryos/internal/ledger"
	"recoveryos/internal/middleware"
)

// SetupRouter собирает сервисы, хендлеры и маршруты в один gin.Engine.
// Зависимости передаются сверху - глобальных переменных с соединениями нет.
func SetupRouter(db *gorm.DB, rdb *redis.Client) *gin.Engine {
	ledgerSvc := ledger.NewService(db, rdb)
	billingSvc := billing.NewService(db, ledgerSvc)

	h := &HandlerSet{
		Ledger:   handlers.NewLedgerHandler(db, ledgerSvc),
		Invoice:  handlers.NewInvoiceHandler(db, billingSvc),
		Payment:  handlers.NewPaymentHandler(db, billingSvc),
		Resident: handlers.NewResidentHandler(db),
		Org:      handlers.NewOrgHandler(db, ledgerSvc, billingSvc),
		Settings: handlers.NewSettingsHandler(db),
		Jobs:     handlers.NewJobsHandler(billingSvc),
	}

	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	RegisterAuthRoutes(r, handlers.NewAuthHandler(db), h.Org)

	// Все API-маршруты требуют валидного JWT с org_id.
	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware(db, rdb))
	{
		RegisterAPIRoutes(authRequired, h)
	}

	return r
}
