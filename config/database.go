package config

import (
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ConnectDB открывает соединение с Postgres и возвращает его вызывающему.
// Раньше соединение лежало в глобальной переменной - теперь все сервисы
// получают *gorm.DB явно, чтобы их можно было тестировать на другой БД.
func ConnectDB(dsn string) *gorm.DB {
	if dsn == "" {
		slog.Error("Критическая ошибка: переменная окружения DB_URL не установлена.")
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		slog.Error("Ошибка подключения к БД", "error", err)
		os.Exit(1)
	}

	slog.Info("Успешное подключение к базе данных!")
	return db
}
