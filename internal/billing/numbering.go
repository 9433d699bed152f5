package billing

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recoveryos/internal/apperr"
	"recoveryos/models"
)

// nextInvoiceNumberTx выделяет следующий номер счета организации:
// INV-{SLUG}-{00001}. Номер берется из выделенного счетчика, который
// инкрементируется атомарно внутри той же транзакции, что и вставка счета.
// Считать существующие счета через count(*) нельзя - два параллельных
// создания получили бы один номер.
func nextInvoiceNumberTx(tx *gorm.DB, orgID uint) (string, error) {
	var org models.Organization
	if err := tx.First(&org, orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.NotFound("organization not found")
		}
		return "", wrapStorage(err)
	}

	// Первая выдача номера создает строку счетчика; гонка двух первых выдач
	// гасится ON CONFLICT DO NOTHING по уникальному org_id.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.InvoiceSequence{OrgID: orgID}).Error; err != nil {
		return "", wrapStorage(err)
	}

	// UPDATE берет блокировку строки: конкурирующая транзакция подождет
	// коммита и получит следующее значение.
	if err := tx.Model(&models.InvoiceSequence{}).
		Where("org_id = ?", orgID).
		UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return "", wrapStorage(err)
	}

	var seq models.InvoiceSequence
	if err := tx.Where("org_id = ?", orgID).First(&seq).Error; err != nil {
		return "", wrapStorage(err)
	}

	return fmt.Sprintf("INV-%s-%05d", org.Slug, seq.LastValue), nil
}
