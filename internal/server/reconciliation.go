package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	reconciliationdomain "github.com/aulatech/cobranza/internal/reconciliation/domain"
)

func (s *Server) SuggestMatches(c *gin.Context) {
	candidates, err := s.reconSvc.Suggest(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if candidates == nil {
		candidates = []reconciliationdomain.Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"data": candidates})
}

func (s *Server) Reconcile(c *gin.Context) {
	var req reconciliationdomain.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	if req.TransactionID == "" {
		AbortWithError(c, newValidationError("transaction_id", "invalid_transaction_id", "invalid transaction id"))
		return
	}

	if err := s.reconSvc.Reconcile(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "reconciled"}})
}

func (s *Server) RevertReconciliation(c *gin.Context) {
	if err := s.reconSvc.Revert(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "unreconciled"}})
}

func isReconciliationValidationError(err error) bool {
	switch err {
	case reconciliationdomain.ErrInvalidTransaction:
		return true
	default:
		return false
	}
}
