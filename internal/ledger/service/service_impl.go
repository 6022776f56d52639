package service

import (
	"context"
	"strings"

	"github.com/aulatech/cobranza/internal/clock"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	"github.com/aulatech/cobranza/pkg/db/option"
	"github.com/aulatech/cobranza/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Directory directorydomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	directory directorydomain.Service

	invoices repository.Repository[ledgerdomain.Invoice]
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("ledger.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		directory: p.Directory,

		invoices: repository.ProvideStore[ledgerdomain.Invoice](p.DB),
	}
}

func AsDomainService(s *Service) ledgerdomain.Service { return s }

func AsEngine(s *Service) ledgerdomain.Engine { return s }

func (s *Service) GetByID(ctx context.Context, id string) (ledgerdomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidInvoiceID
	}

	item, err := s.invoices.FindOne(ctx, &ledgerdomain.Invoice{ID: invoiceID})
	if err != nil {
		return ledgerdomain.Invoice{}, err
	}
	if item == nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListInvoicesRequest) (ledgerdomain.ListInvoicesResponse, error) {
	filter := &ledgerdomain.Invoice{}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	if req.StudentID != nil {
		studentID, err := snowflake.ParseString(strings.TrimSpace(*req.StudentID))
		if err != nil {
			return ledgerdomain.ListInvoicesResponse{}, ledgerdomain.ErrInvalidStudentID
		}
		filter.StudentID = studentID
	}
	if req.BillingPeriod != nil {
		filter.BillingPeriod = req.BillingPeriod
	}

	items, err := s.invoices.Find(ctx, filter, option.WithOrder("created_at DESC"))
	if err != nil {
		return ledgerdomain.ListInvoicesResponse{}, err
	}

	invoices := make([]ledgerdomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return ledgerdomain.ListInvoicesResponse{Invoices: invoices}, nil
}

// Create registers an ad hoc flat-amount invoice without line detail.
func (s *Service) Create(ctx context.Context, req ledgerdomain.CreateInvoiceRequest) (ledgerdomain.Invoice, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidStudentID
	}
	cycleID, err := snowflake.ParseString(strings.TrimSpace(req.CycleID))
	if err != nil {
		return ledgerdomain.Invoice{}, directorydomain.ErrCycleNotFound
	}
	if !req.Amount.IsPositive() {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidAmount
	}

	if _, err := s.directory.GetStudent(ctx, studentID); err != nil {
		return ledgerdomain.Invoice{}, err
	}
	if _, err := s.directory.GetCycle(ctx, cycleID); err != nil {
		return ledgerdomain.Invoice{}, err
	}

	now := s.clock.Now()
	invoice := ledgerdomain.Invoice{
		ID:        s.genID.Generate(),
		StudentID: studentID,
		CycleID:   cycleID,
		Status:    ledgerdomain.InvoiceStatusDraft,
		Total:     req.Amount.Round(2),
		DueDate:   req.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Emit {
		invoice.Status = ledgerdomain.InvoiceStatusPending
		invoice.IssuedAt = &now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := NextInvoiceNumber(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		invoice.Number = number
		return tx.WithContext(ctx).Create(&invoice).Error
	})
	if err != nil {
		return ledgerdomain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) RegisterPayment(ctx context.Context, req ledgerdomain.RegisterPaymentRequest) (ledgerdomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidInvoiceID
	}
	if !req.Amount.IsPositive() {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	paymentDate := now
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	var updated ledgerdomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ledgerdomain.ErrInvoiceNotFound
		}
		if invoice.Status == ledgerdomain.InvoiceStatusCanceled {
			return ledgerdomain.ErrInvoiceCanceled
		}

		payment := ledgerdomain.Payment{
			ID:          s.genID.Generate(),
			InvoiceID:   &invoiceID,
			StudentID:   &invoice.StudentID,
			Amount:      req.Amount.Round(2),
			PaymentDate: paymentDate,
			Status:      ledgerdomain.PaymentStatusConfirmed,
			Reference:   req.Reference,
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		updated, err = s.RecomputeInvoice(ctx, tx, invoiceID)
		return err
	})
	if err != nil {
		return ledgerdomain.Invoice{}, err
	}
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, id string, reason string) (ledgerdomain.Invoice, error) {
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvalidInvoiceID
	}

	var canceled ledgerdomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := loadInvoiceForUpdate(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return ledgerdomain.ErrInvoiceNotFound
		}
		if invoice.Status == ledgerdomain.InvoiceStatusCanceled {
			canceled = *invoice
			return nil
		}
		if invoice.Status == ledgerdomain.InvoiceStatusPaid {
			return ledgerdomain.ErrCancelPaid
		}

		now := s.clock.Now()
		trimmed := strings.TrimSpace(reason)
		updates := map[string]any{
			"status":      ledgerdomain.InvoiceStatusCanceled,
			"canceled_at": now,
			"updated_at":  now,
		}
		if trimmed != "" {
			updates["cancel_reason"] = trimmed
		}
		if err := tx.WithContext(ctx).Model(&ledgerdomain.Invoice{}).
			Where("id = ?", invoiceID).
			Updates(updates).Error; err != nil {
			return err
		}

		invoice.Status = ledgerdomain.InvoiceStatusCanceled
		invoice.CanceledAt = &now
		if trimmed != "" {
			invoice.CancelReason = &trimmed
		}
		canceled = *invoice
		return nil
	})
	if err != nil {
		return ledgerdomain.Invoice{}, err
	}
	return canceled, nil
}

// RecomputeInvoice loads the invoice with its lines and payments and persists
// the recomputed total and state. Safe to call repeatedly.
func (s *Service) RecomputeInvoice(ctx context.Context, tx *gorm.DB, invoiceID snowflake.ID) (ledgerdomain.Invoice, error) {
	invoice, err := loadInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return ledgerdomain.Invoice{}, err
	}
	if invoice == nil {
		return ledgerdomain.Invoice{}, ledgerdomain.ErrInvoiceNotFound
	}

	var lines []ledgerdomain.InvoiceLine
	if err := tx.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Find(&lines).Error; err != nil {
		return ledgerdomain.Invoice{}, err
	}

	var payments []ledgerdomain.Payment
	if err := tx.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Find(&payments).Error; err != nil {
		return ledgerdomain.Invoice{}, err
	}

	result := ledgerdomain.Recompute(*invoice, lines, payments, s.clock.Now())
	if result.Status == invoice.Status && result.Total.Equal(invoice.Total) {
		return *invoice, nil
	}

	now := s.clock.Now()
	if err := tx.WithContext(ctx).Model(&ledgerdomain.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(map[string]any{
			"status":     result.Status,
			"total":      result.Total,
			"updated_at": now,
		}).Error; err != nil {
		return ledgerdomain.Invoice{}, err
	}

	invoice.Status = result.Status
	invoice.Total = result.Total
	invoice.UpdatedAt = now
	return *invoice, nil
}

func loadInvoiceForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*ledgerdomain.Invoice, error) {
	var invoice ledgerdomain.Invoice
	err := tx.WithContext(ctx).
		Clauses(forUpdateClause(tx)...).
		Where("id = ?", id).
		Limit(1).
		Find(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

// NextInvoiceNumber reserves the next sequence number for a cycle from a
// dedicated counter row, so concurrent generators never hand out the same
// number. A failed batch item may leave a gap; numbers stay monotonic.
func NextInvoiceNumber(ctx context.Context, tx *gorm.DB, cycleID snowflake.ID) (int64, error) {
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO invoice_counters (cycle_id, last_number) VALUES (?, 0)
		 ON CONFLICT (cycle_id) DO NOTHING`,
		cycleID,
	)
	if res.Error != nil {
		return 0, res.Error
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE invoice_counters SET last_number = last_number + 1 WHERE cycle_id = ?`,
		cycleID,
	).Error; err != nil {
		return 0, err
	}

	var next int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_number FROM invoice_counters WHERE cycle_id = ?`,
		cycleID,
	).Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

// forUpdateClause adds row locking on engines that support it. The sqlite
// dialect used in tests has no FOR UPDATE.
func forUpdateClause(tx *gorm.DB) []clause.Expression {
	switch tx.Dialector.Name() {
	case "postgres", "mysql":
		return []clause.Expression{clause.Locking{Strength: "UPDATE"}}
	default:
		return nil
	}
}
