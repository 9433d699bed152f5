package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// JwtKey - секретный ключ для подписи токенов. Заполняется в Load().
var JwtKey []byte

// AppConfig хранит все параметры приложения, прочитанные из окружения.
type AppConfig struct {
	Port      string
	DBUrl     string
	RedisAddr string
	JwtSecret string
}

// Load читает .env (если он есть) и переменные окружения.
// Отсутствие .env не является ошибкой - в проде переменные задаются снаружи.
func Load() *AppConfig {
	if err := godotenv.Load(); err != nil {
		slog.Info("Файл .env не найден, используем переменные окружения")
	}

	cfg := &AppConfig{
		Port:      os.Getenv("PORT"),
		DBUrl:     os.Getenv("DB_URL"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		JwtSecret: os.Getenv("JWT_SECRET"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.JwtSecret == "" {
		slog.Error("Критическая ошибка: переменная окружения JWT_SECRET не установлена.")
		os.Exit(1)
	}
	JwtKey = []byte(cfg.JwtSecret)

	return cfg
}
