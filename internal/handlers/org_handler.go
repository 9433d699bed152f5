package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"recoveryos/internal/billing"
	"recoveryos/internal/ledger"
	"recoveryos/models"
)

// OrgHandler отвечает за создание организаций и просмотр членства.
type OrgHandler struct {
	DB      *gorm.DB
	Ledger  *ledger.Service
	Billing *billing.Service
}

func NewOrgHandler(db *gorm.DB, lsvc *ledger.Service, bsvc *billing.Service) *OrgHandler {
	return &OrgHandler{DB: db, Ledger: lsvc, Billing: bsvc}
}

type createOrgInput struct {
	Name          string `json:"name" binding:"required"`
	Slug          string `json:"slug" binding:"required"`
	Timezone      string `json:"timezone"`
	OwnerLogin    string `json:"ownerLogin" binding:"required"`
	OwnerPassword string `json:"ownerPassword" binding:"required"`
	OwnerFullName string `json:"ownerFullName"`
}

// CreateOrganization - публичная точка онбординга: организация, ее владелец
// и членство создаются одной транзакцией, после чего устанавливаются
// стандартный план счетов и маппинги типов платежей. Логин переиспользуется,
// если пользователь уже существует (один человек может владеть несколькими
// домами).
func (h *OrgHandler) CreateOrganization(c *gin.Context) {
	var input createOrgInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slug := strings.ToUpper(strings.TrimSpace(input.Slug))
	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Slug is required"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.OwnerPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	org := models.Organization{Name: input.Name, Slug: slug, Timezone: input.Timezone}
	var user models.User

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		err := tx.Where("login = ?", input.OwnerLogin).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				Login:        input.OwnerLogin,
				FullName:     input.OwnerFullName,
				PasswordHash: string(hashed),
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return tx.Create(&models.OrgMembership{
			UserID: user.ID,
			OrgID:  org.ID,
			Role:   "owner",
		}).Error
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create organization: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.Ledger.SeedDefaultChart(ctx, org.ID); err != nil {
		respondError(c, err)
		return
	}
	if err := h.Billing.SeedDefaultMappings(ctx, org.ID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"organization": org, "ownerId": user.ID})
}

// GetCurrentOrganization отдает организацию из контекста запроса
// вместе с ролью текущего пользователя в ней.
func (h *OrgHandler) GetCurrentOrganization(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	var org models.Organization
	if err := h.DB.First(&org, orgID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
		return
	}
	role, _ := c.Get("role")
	c.JSON(http.StatusOK, gin.H{"organization": org, "role": role})
}

// ListMemberships возвращает сотрудников организации с их ролями.
func (h *OrgHandler) ListMemberships(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	type memberRow struct {
		UserID   uint   `json:"userId"`
		Login    string `json:"login"`
		FullName string `json:"fullName"`
		Role     string `json:"role"`
	}
	var members []memberRow
	err := h.DB.Table("org_memberships").
		Select("org_memberships.user_id, users.login, users.full_name, org_memberships.role").
		Joins("JOIN users ON users.id = org_memberships.user_id").
		Where("org_memberships.org_id = ? AND org_memberships.deleted_at IS NULL", orgID).
		Order("users.login").
		Scan(&members).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}
