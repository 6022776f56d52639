package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
)

// ImportStatement accepts the CSV either as a multipart "file" field or as
// the raw request body.
func (s *Server) ImportStatement(c *gin.Context) {
	var statement io.Reader = c.Request.Body
	if file, err := c.FormFile("file"); err == nil {
		opened, err := file.Open()
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		defer opened.Close()
		statement = opened
	}

	resp, err := s.bankSvc.Import(c.Request.Context(), statement)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := bankdomain.ListTransactionsRequest{}
	if v := strings.TrimSpace(query.Status); v != "" {
		status := bankdomain.TransactionStatus(strings.ToUpper(v))
		req.Status = &status
	}

	resp, err := s.bankSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTransactionByID(c *gin.Context) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_transaction_id", "invalid transaction id"))
		return
	}

	resp, err := s.bankSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isStatementValidationError(err error) bool {
	switch err {
	case bankdomain.ErrMissingHeader:
		return true
	default:
		return false
	}
}
