package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	taxdocdomain "github.com/aulatech/cobranza/internal/taxdoc/domain"
)

func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		Status    string `form:"status"`
		StudentID string `form:"student_id"`
		Period    string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := ledgerdomain.ListInvoicesRequest{}
	if v := strings.TrimSpace(query.Status); v != "" {
		status := ledgerdomain.InvoiceStatus(strings.ToUpper(v))
		req.Status = &status
	}
	if v := strings.TrimSpace(query.StudentID); v != "" {
		req.StudentID = &v
	}
	if v := strings.TrimSpace(query.Period); v != "" {
		req.BillingPeriod = &v
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createInvoiceRequest struct {
	StudentID string          `json:"student_id"`
	CycleID   string          `json:"cycle_id"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   *time.Time      `json:"due_date"`
	Emit      bool            `json:"emit"`
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), ledgerdomain.CreateInvoiceRequest{
		StudentID: strings.TrimSpace(req.StudentID),
		CycleID:   strings.TrimSpace(req.CycleID),
		Amount:    req.Amount,
		DueDate:   req.DueDate,
		Emit:      req.Emit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type registerPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Reference   *string         `json:"reference"`
}

func (s *Server) RegisterPayment(c *gin.Context) {
	var req registerPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.RegisterPayment(c.Request.Context(), ledgerdomain.RegisterPaymentRequest{
		InvoiceID:   strings.TrimSpace(c.Param("id")),
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Reference:   req.Reference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type cancelInvoiceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req cancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.Cancel(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Reason))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type stampInvoiceRequest struct {
	Receptor taxdocdomain.Receptor `json:"receptor"`
}

func (s *Server) StampInvoice(c *gin.Context) {
	var req stampInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.taxdocProv.Stamp(c.Request.Context(), invoice, req.Receptor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": doc})
}

func isInvoiceValidationError(err error) bool {
	switch err {
	case ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrInvalidStudentID,
		ledgerdomain.ErrInvalidInvoiceID:
		return true
	default:
		return false
	}
}
