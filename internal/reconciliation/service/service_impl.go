package service

import (
	"context"
	"sort"
	"strings"

	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
	"github.com/aulatech/cobranza/internal/clock"
	"github.com/aulatech/cobranza/internal/config"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	obsmetrics "github.com/aulatech/cobranza/internal/observability/metrics"
	"github.com/aulatech/cobranza/internal/reconciliation/domain"
	"github.com/aulatech/cobranza/internal/reconciliation/matcher"
	"github.com/aulatech/cobranza/pkg/db"
	"github.com/aulatech/cobranza/pkg/db/option"
	"github.com/aulatech/cobranza/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var outstandingStatuses = []ledgerdomain.InvoiceStatus{
	ledgerdomain.InvoiceStatusPending,
	ledgerdomain.InvoiceStatusPartiallyPaid,
	ledgerdomain.InvoiceStatusOverdue,
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Directory  directorydomain.Service
	Engine     ledgerdomain.Engine
	Extractor  matcher.Extractor
	BillingCfg *config.BillingConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	directory  directorydomain.Service
	engine     ledgerdomain.Engine
	extractor  matcher.Extractor
	billingCfg *config.BillingConfigHolder
	obsMetrics *obsmetrics.Metrics

	transactions repository.Repository[bankdomain.BankTransaction]
	invoices     repository.Repository[ledgerdomain.Invoice]
	records      repository.Repository[domain.ReconciliationRecord]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("reconciliation.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		directory:  p.Directory,
		engine:     p.Engine,
		extractor:  p.Extractor,
		billingCfg: p.BillingCfg,
		obsMetrics: p.ObsMetrics,

		transactions: repository.ProvideStore[bankdomain.BankTransaction](p.DB),
		invoices:     repository.ProvideStore[ledgerdomain.Invoice](p.DB),
		records:      repository.ProvideStore[domain.ReconciliationRecord](p.DB),
	}
}

// Suggest ranks candidate invoices for an unreconciled deposit. Identifier
// hits are tried first; without one every outstanding invoice in the system
// is scored on amount closeness and text containment.
func (s *Service) Suggest(ctx context.Context, transactionID string) ([]domain.Candidate, error) {
	txn, err := s.loadTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != bankdomain.StatusUnreconciled {
		return nil, domain.ErrNotUnreconciled
	}

	cfg := s.billingCfg.Get().Matcher

	student, err := s.identifyStudent(ctx, txn.Description)
	if err != nil {
		return nil, err
	}

	if student != nil {
		candidates, err := s.suggestForStudent(ctx, txn, *student, cfg.ExtraPendingLimit)
		if err != nil {
			return nil, err
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
		// identified student owes nothing; fall back to global scoring
	}

	return s.suggestGlobal(ctx, txn, cfg.MinConfidence, cfg.MaxCandidates)
}

func (s *Service) suggestForStudent(ctx context.Context, txn bankdomain.BankTransaction, student directorydomain.Student, extraLimit int) ([]domain.Candidate, error) {
	items, err := s.invoices.Find(ctx,
		&ledgerdomain.Invoice{StudentID: student.ID},
		statusIn(outstandingStatuses),
		option.WithOrder("due_date ASC"),
	)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	for _, item := range items {
		if item.Total.Sub(txn.Amount).Abs().LessThanOrEqual(ledgerdomain.Tolerance) {
			return []domain.Candidate{newCandidate(*item, student, 0.95, "identifier match, exact amount")}, nil
		}
	}

	candidates := []domain.Candidate{
		newCandidate(*items[0], student, 0.85, "identifier match, earliest due invoice (FIFO application to account)"),
	}
	for _, item := range items[1:] {
		if len(candidates) > extraLimit {
			break
		}
		candidates = append(candidates, newCandidate(*item, student, 0.60, "identifier match, other pending invoice"))
	}
	return candidates, nil
}

func (s *Service) suggestGlobal(ctx context.Context, txn bankdomain.BankTransaction, minConfidence float64, maxCandidates int) ([]domain.Candidate, error) {
	items, err := s.invoices.Find(ctx, &ledgerdomain.Invoice{}, statusIn(outstandingStatuses))
	if err != nil {
		return nil, err
	}

	students, err := s.studentsByID(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []domain.Candidate
	for _, item := range items {
		if item == nil {
			continue
		}
		student, ok := students[item.StudentID]
		if !ok {
			continue
		}
		confidence, reason := matcher.Score(txn.Description, txn.Amount, *item, student)
		if confidence <= minConfidence {
			continue
		}
		candidates = append(candidates, newCandidate(*item, student, confidence, reason))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

// Reconcile records a confirmed match and, when an invoice is named, registers
// the deposit as a confirmed payment against it. Re-reconciling an already
// reconciled transaction is a no-op.
func (s *Service) Reconcile(ctx context.Context, req domain.ReconcileRequest) error {
	txn, err := s.loadTransaction(ctx, req.TransactionID)
	if err != nil {
		return err
	}
	if txn.Status == bankdomain.StatusReconciled {
		return nil
	}
	if txn.Status == bankdomain.StatusIgnored {
		return domain.ErrTransactionIgnored
	}

	var studentID *snowflake.ID
	if req.StudentID != nil {
		id, err := snowflake.ParseString(strings.TrimSpace(*req.StudentID))
		if err != nil {
			return ledgerdomain.ErrInvalidStudentID
		}
		if _, err := s.directory.GetStudent(ctx, id); err != nil {
			return err
		}
		studentID = &id
	}

	var invoice *ledgerdomain.Invoice
	if req.InvoiceID != nil {
		id, err := snowflake.ParseString(strings.TrimSpace(*req.InvoiceID))
		if err != nil {
			return ledgerdomain.ErrInvalidInvoiceID
		}
		invoice, err = s.invoices.FindOne(ctx, &ledgerdomain.Invoice{ID: id})
		if err != nil {
			return err
		}
		if invoice == nil {
			return ledgerdomain.ErrInvoiceNotFound
		}
		if invoice.Status == ledgerdomain.InvoiceStatusCanceled {
			return ledgerdomain.ErrInvoiceCanceled
		}
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := domain.ReconciliationRecord{
			ID:                s.genID.Generate(),
			BankTransactionID: txn.ID,
			StudentID:         studentID,
			Comment:           req.Comment,
			CreatedAt:         now,
		}

		if invoice != nil {
			invoiceID := invoice.ID
			payment := ledgerdomain.Payment{
				ID:          s.genID.Generate(),
				InvoiceID:   &invoiceID,
				StudentID:   &invoice.StudentID,
				Amount:      txn.Amount,
				PaymentDate: txn.Date,
				Status:      ledgerdomain.PaymentStatusConfirmed,
				Reference:   &txn.Description,
				CreatedAt:   now,
			}
			if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
				return err
			}
			record.InvoiceID = &invoiceID
			record.PaymentID = &payment.ID
		}

		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			// a concurrent operator won the unique index on bank_transaction_id
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNotUnreconciled
			}
			return err
		}
		if err := tx.WithContext(ctx).Model(&bankdomain.BankTransaction{}).
			Where("id = ?", txn.ID).
			Update("status", bankdomain.StatusReconciled).Error; err != nil {
			return err
		}

		if record.InvoiceID != nil {
			if _, err := s.engine.RecomputeInvoice(ctx, tx, *record.InvoiceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordReconciliation("commit")
	}
	s.log.Info("transaction reconciled", zap.String("transaction_id", txn.ID.String()))
	return nil
}

// Revert undoes a reconciliation: the record is removed, any payment it
// registered is voided, and the transaction returns to unreconciled. A
// transaction that is not reconciled is a no-op.
func (s *Service) Revert(ctx context.Context, transactionID string) error {
	txn, err := s.loadTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if txn.Status != bankdomain.StatusReconciled {
		return nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record domain.ReconciliationRecord
		res := tx.WithContext(ctx).
			Where("bank_transaction_id = ?", txn.ID).
			Limit(1).
			Find(&record)
		if res.Error != nil {
			return res.Error
		}

		if record.ID != 0 {
			if record.PaymentID != nil {
				if err := tx.WithContext(ctx).Model(&ledgerdomain.Payment{}).
					Where("id = ?", *record.PaymentID).
					Update("status", ledgerdomain.PaymentStatusVoid).Error; err != nil {
					return err
				}
			}
			if err := tx.WithContext(ctx).
				Where("id = ?", record.ID).
				Delete(&domain.ReconciliationRecord{}).Error; err != nil {
				return err
			}
			if record.InvoiceID != nil {
				if _, err := s.engine.RecomputeInvoice(ctx, tx, *record.InvoiceID); err != nil {
					return err
				}
			}
		}

		return tx.WithContext(ctx).Model(&bankdomain.BankTransaction{}).
			Where("id = ?", txn.ID).
			Update("status", bankdomain.StatusUnreconciled).Error
	})
	if err != nil {
		return err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordReconciliation("revert")
	}
	s.log.Info("reconciliation reverted", zap.String("transaction_id", txn.ID.String()))
	return nil
}

func (s *Service) loadTransaction(ctx context.Context, transactionID string) (bankdomain.BankTransaction, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(transactionID))
	if err != nil {
		return bankdomain.BankTransaction{}, domain.ErrInvalidTransaction
	}
	item, err := s.transactions.FindOne(ctx, &bankdomain.BankTransaction{ID: id})
	if err != nil {
		return bankdomain.BankTransaction{}, err
	}
	if item == nil {
		return bankdomain.BankTransaction{}, bankdomain.ErrTransactionNotFound
	}
	return *item, nil
}

// identifyStudent resolves a description token to a student, or nil when no
// token resolves.
func (s *Service) identifyStudent(ctx context.Context, description string) (*directorydomain.Student, error) {
	token := s.extractor.Extract(description)
	switch token.Kind {
	case matcher.TokenKindCode:
		var student directorydomain.Student
		res := s.db.WithContext(ctx).
			Where("UPPER(code) = ?", token.Value).
			Limit(1).
			Find(&student)
		if res.Error != nil {
			return nil, res.Error
		}
		if student.ID == 0 {
			return nil, nil
		}
		return &student, nil
	case matcher.TokenKindNumeric:
		students, err := s.directory.ListActiveStudents(ctx)
		if err != nil {
			return nil, err
		}
		for _, student := range students {
			if matcher.NumericCode(student.Code) == token.Value {
				return &student, nil
			}
		}
		return nil, nil
	default:
		return nil, nil
	}
}

func (s *Service) studentsByID(ctx context.Context) (map[snowflake.ID]directorydomain.Student, error) {
	students, err := s.directory.ListActiveStudents(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[snowflake.ID]directorydomain.Student, len(students))
	for _, student := range students {
		byID[student.ID] = student
	}
	return byID, nil
}

func newCandidate(invoice ledgerdomain.Invoice, student directorydomain.Student, confidence float64, reason string) domain.Candidate {
	return domain.Candidate{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.Number,
		StudentID:     student.ID,
		StudentName:   strings.TrimSpace(student.FirstName + " " + student.LastName),
		Amount:        invoice.Total,
		Confidence:    confidence,
		Reason:        reason,
	}
}

type statusInOption struct {
	statuses []ledgerdomain.InvoiceStatus
}

func (o statusInOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status IN ?", o.statuses)
}

func statusIn(statuses []ledgerdomain.InvoiceStatus) option.QueryOption {
	return statusInOption{statuses: statuses}
}
