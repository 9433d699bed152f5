package models

import "gorm.io/gorm"

// Resident - житель дома. Биллинговому ядру от него нужен только ID
// и принадлежность организации; остальное ведут другие модули.
type Resident struct {
	gorm.Model
	OrgID     uint   `json:"orgId" gorm:"index;not null"`
	FirstName string `json:"firstName" gorm:"not null"`
	LastName  string `json:"lastName" gorm:"not null"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Status    string `json:"status" gorm:"default:'active'"`
}
