package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/aulatech/cobranza/internal/billing/domain"
)

type generateMonthlyRequest struct {
	Period  string `json:"period"`
	CycleID string `json:"cycle_id"`
	GroupID string `json:"group_id"`
	Emit    bool   `json:"emit"`
	DryRun  bool   `json:"dry_run"`
}

func (s *Server) GenerateMonthly(c *gin.Context) {
	var req generateMonthlyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.GenerateMonthly(c.Request.Context(), billingdomain.GenerateMonthlyRequest{
		Period:  strings.TrimSpace(req.Period),
		CycleID: strings.TrimSpace(req.CycleID),
		GroupID: strings.TrimSpace(req.GroupID),
		Emit:    req.Emit,
		DryRun:  req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type applyLateFeesRequest struct {
	Period  string `json:"period"`
	CycleID string `json:"cycle_id"`
	DryRun  bool   `json:"dry_run"`
}

func (s *Server) ApplyLateFees(c *gin.Context) {
	var req applyLateFeesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingSvc.ApplyLateFees(c.Request.Context(), billingdomain.ApplyLateFeesRequest{
		Period:  strings.TrimSpace(req.Period),
		CycleID: strings.TrimSpace(req.CycleID),
		DryRun:  req.DryRun,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isBillingValidationError(err error) bool {
	switch err {
	case billingdomain.ErrInvalidPeriod,
		billingdomain.ErrInvalidCycleID,
		billingdomain.ErrInvalidGroupID,
		billingdomain.ErrInvalidLateFeeRule:
		return true
	default:
		return false
	}
}
