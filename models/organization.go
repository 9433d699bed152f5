package models

import "gorm.io/gorm"

// Organization - арендатор (дом/сеть домов). Все финансовые сущности
// привязаны к организации через OrgID.
type Organization struct {
	gorm.Model
	Name     string `json:"name" gorm:"not null"`
	Slug     string `json:"slug" gorm:"uniqueIndex;not null"` // короткий код для номеров счетов, напр. "SRH"
	Timezone string `json:"timezone" gorm:"default:'UTC'"`
}

// InvoiceSequence - счетчик номеров счетов на организацию.
// Инкрементируется атомарно внутри той же транзакции, что и вставка счета,
// поэтому параллельное создание счетов не дает дубликатов номеров.
type InvoiceSequence struct {
	gorm.Model
	OrgID     uint  `json:"orgId" gorm:"uniqueIndex;not null"`
	LastValue int64 `json:"lastValue" gorm:"not null;default:0"`
}
