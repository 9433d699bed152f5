package main

import (
	"log/slog"
	"os"

	"recoveryos/config"
	"recoveryos/internal/routes"
	"recoveryos/models"
)

func main() {
	cfg := config.Load()

	db := config.ConnectDB(cfg.DBUrl)
	rdb := config.ConnectRedis(cfg.RedisAddr)

	// Миграции схемы. Порядок важен: сначала справочники, потом документы.
	if err := db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.OrgMembership{},
		&models.Resident{},
		&models.LedgerAccount{},
		&models.LedgerEntry{},
		&models.LedgerIdempotencyKey{},
		&models.InvoiceSequence{},
		&models.Invoice{},
		&models.InvoiceLineItem{},
		&models.Payment{},
		&models.PaymentTypeMapping{},
		&models.LateFeeRule{},
	); err != nil {
		slog.Error("Ошибка миграции схемы БД", "error", err)
		os.Exit(1)
	}

	r := routes.SetupRouter(db, rdb)

	slog.Info("Сервер запускается", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("Сервер остановился с ошибкой", "error", err)
		os.Exit(1)
	}
}
