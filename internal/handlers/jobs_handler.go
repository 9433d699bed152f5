package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recoveryos/internal/billing"
)

// JobsHandler - точки входа для внешнего планировщика (cron дергает их по HTTP).
type JobsHandler struct {
	svc *billing.Service
}

func NewJobsHandler(svc *billing.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

// RunOverdue переводит просроченные счета организации в overdue
// и начисляет пеню по правилу организации.
func (h *JobsHandler) RunOverdue(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}
	flipped, err := h.svc.MarkOverdueInvoices(c.Request.Context(), orgID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdueInvoices": flipped})
}
