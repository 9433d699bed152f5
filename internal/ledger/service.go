// Package ledger - план счетов и движок двойной записи.
// Каждая проводка - сбалансированная пара записей (дебет и кредит) с общим
// TransactionID. История append-only: исправления делаются обратными
// проводками, записи никогда не редактируются и не удаляются.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recoveryos/internal/apperr"
)

// Время жизни кэша остатков. Кэш - только ускорение: источником истины
// всегда остается полный пересчет по записям леджера.
const balanceCacheTTL = 10 * time.Minute

// Версия счетчика живет заметно дольше самого кэша: пока версия жива,
// устаревшие ключи прошлых версий гарантированно мертвы для читателей.
const balanceVersionTTL = 24 * time.Hour

// Service инкапсулирует работу с планом счетов и проводками.
// Зависимости передаются явно, без глобальных переменных.
type Service struct {
	db  *gorm.DB
	rdb *redis.Client // может быть nil - тогда кэш отключен
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{db: db, rdb: rdb}
}

// DB отдает хэндл БД - нужен биллингу, чтобы вкладывать проводки
// в свои транзакции.
func (s *Service) DB() *gorm.DB { return s.db }

// Ключи кэша версионируются: проводка не удаляет ключ, а инкрементит
// версию счета. Простой DEL оставлял бы окно - читатель, досчитавший
// SUM до коммита, мог бы записать устаревший остаток уже после сброса
// и отдавать его весь TTL. С версией такая запись ложится на мертвый
// ключ, который никто больше не читает.
func balanceCacheKey(orgID uint, code string, ver int64) string {
	return fmt.Sprintf("ledger:%d:balance:%s:v%d", orgID, code, ver)
}

func balanceVersionKey(orgID uint, code string) string {
	return fmt.Sprintf("ledger:%d:balancever:%s", orgID, code)
}

// balanceVersion читает текущую версию кэша счета. Отсутствие ключа или
// ошибка Redis трактуются как нулевая версия.
func (s *Service) balanceVersion(ctx context.Context, orgID uint, code string) int64 {
	v, err := s.rdb.Get(ctx, balanceVersionKey(orgID, code)).Int64()
	if err != nil {
		return 0
	}
	return v
}

// wrapStorage приводит ошибку хранилища к нашей таксономии, не трогая
// уже типизированные ошибки.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Storage(err)
}

// invalidateBalances сбрасывает кэшированные остатки затронутых счетов,
// поднимая версию каждого. Вызывается после успешного коммита проводки.
func (s *Service) invalidateBalances(ctx context.Context, orgID uint, codes ...string) {
	if s.rdb == nil || len(codes) == 0 {
		return
	}
	pipe := s.rdb.Pipeline()
	for _, code := range codes {
		key := balanceVersionKey(orgID, code)
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, balanceVersionTTL)
	}
	// Кэш не критичен: при ошибке остаток досчитается из БД, а старый
	// ключ истечет по TTL.
	_, _ = pipe.Exec(ctx)
}
