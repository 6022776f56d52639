package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	billingdomain "github.com/aulatech/cobranza/internal/billing/domain"
	"github.com/aulatech/cobranza/internal/clock"
	"github.com/aulatech/cobranza/internal/config"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	ledgerservice "github.com/aulatech/cobranza/internal/ledger/service"
	obsmetrics "github.com/aulatech/cobranza/internal/observability/metrics"
	"github.com/aulatech/cobranza/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Directory  directorydomain.Service
	Engine     ledgerdomain.Engine
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
	billingCfg *config.BillingConfigHolder
	obsMetrics *obsmetrics.Metrics

	chargeRules  repository.Repository[billingdomain.ChargeRule]
	lateFeeRules repository.Repository[billingdomain.LateFeeRule]
	scholarships repository.Repository[billingdomain.Scholarship]
}

func NewService(p Params) billingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		directory:  p.Directory,
		engine:     p.Engine,
		billingCfg: p.BillingCfg,
		obsMetrics: p.ObsMetrics,

		chargeRules:  repository.ProvideStore[billingdomain.ChargeRule](p.DB),
		lateFeeRules: repository.ProvideStore[billingdomain.LateFeeRule](p.DB),
		scholarships: repository.ProvideStore[billingdomain.Scholarship](p.DB),
	}
}

func (s *Service) GenerateMonthly(ctx context.Context, req billingdomain.GenerateMonthlyRequest) (billingdomain.GenerateMonthlyResponse, error) {
	if !periodPattern.MatchString(req.Period) {
		return billingdomain.GenerateMonthlyResponse{}, billingdomain.ErrInvalidPeriod
	}
	cycleID, err := snowflake.ParseString(strings.TrimSpace(req.CycleID))
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, billingdomain.ErrInvalidCycleID
	}
	groupID, err := snowflake.ParseString(strings.TrimSpace(req.GroupID))
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, billingdomain.ErrInvalidGroupID
	}

	if _, err := s.directory.GetCycle(ctx, cycleID); err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}
	group, err := s.directory.GetGroup(ctx, groupID)
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}
	if group.CycleID != cycleID {
		return billingdomain.GenerateMonthlyResponse{}, directorydomain.ErrGroupNotFound
	}

	ruleItems, err := s.chargeRules.Find(ctx, &billingdomain.ChargeRule{CycleID: cycleID, Active: true})
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}
	rules := make([]billingdomain.ChargeRule, 0, len(ruleItems))
	for _, item := range ruleItems {
		if item != nil {
			rules = append(rules, *item)
		}
	}
	rule, tier, err := resolveChargeRule(rules, group)
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}
	s.log.Info("charge rule resolved",
		zap.String("period", req.Period),
		zap.String("group", group.Name),
		zap.String("tier", tier),
		zap.String("amount", rule.Amount.StringFixed(2)))

	students, err := s.directory.ListActiveStudentsByGroup(ctx, groupID)
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}

	existing, err := s.existingChargedStudents(ctx, req.Period, rule.ConceptID)
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}

	scholarshipByStudent, err := s.activeScholarships(ctx, cycleID)
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}

	dueDate := dueDateFor(req.Period, rule.DueDay)
	now := s.clock.Now()

	resp := billingdomain.GenerateMonthlyResponse{
		TotalStudents: len(students),
		Errors:        []string{},
	}

	type pendingInvoice struct {
		invoice ledgerdomain.Invoice
		line    ledgerdomain.InvoiceLine
	}
	var toCreate []pendingInvoice

	for _, student := range students {
		if _, ok := existing[student.ID]; ok {
			resp.SkippedExisting++
			continue
		}

		amount := rule.Amount
		if scholarship, ok := scholarshipByStudent[student.ID]; ok {
			if scholarship.Type == billingdomain.ScholarshipTypePercentage && scholarship.Value.GreaterThan(decimal.NewFromInt(1)) {
				resp.Errors = append(resp.Errors, fmt.Sprintf("student %s: percentage scholarship above 1.0", student.Code))
				continue
			}
			amount = scholarship.Apply(amount)
		} else {
			amount = amount.Round(2)
		}

		period := req.Period
		invoiceID := s.genID.Generate()
		ruleID := rule.ID
		conceptID := rule.ConceptID
		invoice := ledgerdomain.Invoice{
			ID:            invoiceID,
			StudentID:     student.ID,
			CycleID:       cycleID,
			Status:        ledgerdomain.InvoiceStatusDraft,
			Total:         amount,
			BillingPeriod: &period,
			ChargeRuleID:  &ruleID,
			DueDate:       &dueDate,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if req.Emit {
			invoice.Status = ledgerdomain.InvoiceStatusPending
			issuedAt := now
			invoice.IssuedAt = &issuedAt
		}
		line := ledgerdomain.InvoiceLine{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			ConceptID:   &conceptID,
			Description: fmt.Sprintf("Colegiatura %s", period),
			Subtotal:    amount,
			CreatedAt:   now,
		}
		toCreate = append(toCreate, pendingInvoice{invoice: invoice, line: line})
	}

	if req.DryRun {
		resp.Created = len(toCreate)
		return resp, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pending := range toCreate {
			pending := pending
			itemErr := tx.Transaction(func(itemTx *gorm.DB) error {
				number, err := ledgerservice.NextInvoiceNumber(ctx, itemTx, cycleID)
				if err != nil {
					return err
				}
				pending.invoice.Number = number
				if err := itemTx.WithContext(ctx).Create(&pending.invoice).Error; err != nil {
					return err
				}
				return itemTx.WithContext(ctx).Create(&pending.line).Error
			})
			if itemErr != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("invoice for student %s: %v", pending.invoice.StudentID.String(), itemErr))
				continue
			}
			resp.Created++
			if s.obsMetrics != nil {
				s.obsMetrics.RecordInvoiceGenerated()
			}
		}
		return nil
	})
	if err != nil {
		return billingdomain.GenerateMonthlyResponse{}, err
	}

	s.log.Info("monthly charges generated",
		zap.String("period", req.Period),
		zap.Int("total_students", resp.TotalStudents),
		zap.Int("created", resp.Created),
		zap.Int("skipped_existing", resp.SkippedExisting),
		zap.Int("errors", len(resp.Errors)))
	return resp, nil
}

func (s *Service) ApplyLateFees(ctx context.Context, req billingdomain.ApplyLateFeesRequest) (billingdomain.ApplyLateFeesResponse, error) {
	if !periodPattern.MatchString(req.Period) {
		return billingdomain.ApplyLateFeesResponse{}, billingdomain.ErrInvalidPeriod
	}
	cycleID, err := snowflake.ParseString(strings.TrimSpace(req.CycleID))
	if err != nil {
		return billingdomain.ApplyLateFeesResponse{}, billingdomain.ErrInvalidCycleID
	}

	ruleItem, err := s.lateFeeRules.FindOne(ctx, &billingdomain.LateFeeRule{CycleID: cycleID, Active: true})
	if err != nil {
		return billingdomain.ApplyLateFeesResponse{}, err
	}
	if ruleItem == nil {
		return billingdomain.ApplyLateFeesResponse{}, billingdomain.ErrLateFeeRuleNotFound
	}
	rule := *ruleItem

	maxGraceDays := s.billingCfg.Get().LateFee.MaxGraceDays
	if rule.GraceDays <= 0 || rule.GraceDays > maxGraceDays {
		return billingdomain.ApplyLateFeesResponse{}, billingdomain.ErrInvalidLateFeeRule
	}
	if !rule.Percentage.IsPositive() || rule.Percentage.GreaterThan(decimal.NewFromInt(1)) {
		return billingdomain.ApplyLateFeesResponse{}, billingdomain.ErrInvalidLateFeeRule
	}

	tuition, err := s.directory.GetConceptByCode(ctx, directorydomain.ConceptCodeTuition)
	if err != nil {
		return billingdomain.ApplyLateFeesResponse{}, err
	}
	lateFee, err := s.directory.GetConceptByCode(ctx, directorydomain.ConceptCodeLateFee)
	if err != nil {
		return billingdomain.ApplyLateFeesResponse{}, err
	}

	var invoices []ledgerdomain.Invoice
	if err := s.db.WithContext(ctx).
		Where("billing_period = ? AND cycle_id = ?", req.Period, cycleID).
		Where("status NOT IN ?", []ledgerdomain.InvoiceStatus{
			ledgerdomain.InvoiceStatusDraft,
			ledgerdomain.InvoiceStatusCanceled,
		}).
		Where("EXISTS (SELECT 1 FROM invoice_lines l WHERE l.invoice_id = invoices.id AND l.concept_id = ?)", tuition.ID).
		Find(&invoices).Error; err != nil {
		return billingdomain.ApplyLateFeesResponse{}, err
	}

	today := s.clock.Now()
	resp := billingdomain.ApplyLateFeesResponse{
		InvoicesEvaluated: len(invoices),
		Errors:            []string{},
	}

	type pendingSurcharge struct {
		invoiceID snowflake.ID
		line      ledgerdomain.InvoiceLine
	}
	var toApply []pendingSurcharge

	for _, invoice := range invoices {
		var lines []ledgerdomain.InvoiceLine
		if err := s.db.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&lines).Error; err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("invoice %d: %v", invoice.Number, err))
			continue
		}
		var payments []ledgerdomain.Payment
		if err := s.db.WithContext(ctx).Where("invoice_id = ?", invoice.ID).Find(&payments).Error; err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("invoice %d: %v", invoice.Number, err))
			continue
		}

		result := ledgerdomain.Recompute(invoice, lines, payments, today)
		if result.Balance().LessThanOrEqual(ledgerdomain.Tolerance) {
			continue
		}
		if invoice.DueDate == nil || invoice.DueDate.AddDate(0, 0, rule.GraceDays).After(today) {
			continue
		}
		if hasConceptLine(lines, lateFee.ID) {
			resp.SkippedExisting++
			continue
		}

		surcharge := result.Balance().Mul(rule.Percentage).Round(2)
		if surcharge.LessThan(ledgerdomain.Tolerance) {
			continue
		}

		lateFeeConceptID := lateFee.ID
		toApply = append(toApply, pendingSurcharge{
			invoiceID: invoice.ID,
			line: ledgerdomain.InvoiceLine{
				ID:          s.genID.Generate(),
				InvoiceID:   invoice.ID,
				ConceptID:   &lateFeeConceptID,
				Description: fmt.Sprintf("Recargo por pago extemporáneo %s", req.Period),
				Subtotal:    surcharge,
				CreatedAt:   today,
			},
		})
	}

	if req.DryRun {
		resp.Applied = len(toApply)
		return resp, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, pending := range toApply {
			pending := pending
			itemErr := tx.Transaction(func(itemTx *gorm.DB) error {
				if err := itemTx.WithContext(ctx).Create(&pending.line).Error; err != nil {
					return err
				}
				_, err := s.engine.RecomputeInvoice(ctx, itemTx, pending.invoiceID)
				return err
			})
			if itemErr != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("invoice %s: %v", pending.invoiceID.String(), itemErr))
				continue
			}
			resp.Applied++
		}
		return nil
	})
	if err != nil {
		return billingdomain.ApplyLateFeesResponse{}, err
	}

	s.log.Info("late fees applied",
		zap.String("period", req.Period),
		zap.Int("evaluated", resp.InvoicesEvaluated),
		zap.Int("applied", resp.Applied),
		zap.Int("skipped_existing", resp.SkippedExisting))
	return resp, nil
}

// existingChargedStudents prefetches the students that already hold a
// non-canceled invoice for (period, concept), so the batch never repeats a
// charge.
func (s *Service) existingChargedStudents(ctx context.Context, period string, conceptID snowflake.ID) (map[snowflake.ID]struct{}, error) {
	var studentIDs []int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT i.student_id
		 FROM invoices i
		 JOIN invoice_lines l ON l.invoice_id = i.id
		 WHERE i.billing_period = ? AND i.status <> ? AND l.concept_id = ?`,
		period,
		ledgerdomain.InvoiceStatusCanceled,
		conceptID,
	).Scan(&studentIDs).Error
	if err != nil {
		return nil, err
	}

	existing := make(map[snowflake.ID]struct{}, len(studentIDs))
	for _, id := range studentIDs {
		existing[snowflake.ID(id)] = struct{}{}
	}
	return existing, nil
}

func (s *Service) activeScholarships(ctx context.Context, cycleID snowflake.ID) (map[snowflake.ID]billingdomain.Scholarship, error) {
	items, err := s.scholarships.Find(ctx, &billingdomain.Scholarship{CycleID: cycleID, Active: true})
	if err != nil {
		return nil, err
	}
	byStudent := make(map[snowflake.ID]billingdomain.Scholarship, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		byStudent[item.StudentID] = *item
	}
	return byStudent, nil
}

func hasConceptLine(lines []ledgerdomain.InvoiceLine, conceptID snowflake.ID) bool {
	for _, line := range lines {
		if line.ConceptID != nil && *line.ConceptID == conceptID {
			return true
		}
	}
	return false
}

// dueDateFor places the rule's due day inside the billing month, clamped to
// the month's last day (a due day of 31 in February becomes the 28th/29th).
func dueDateFor(period string, dueDay int) time.Time {
	monthStart, _ := time.Parse("2006-01", period)
	lastDay := monthStart.AddDate(0, 1, -1).Day()
	if dueDay < 1 {
		dueDay = 1
	}
	if dueDay > lastDay {
		dueDay = lastDay
	}
	return time.Date(monthStart.Year(), monthStart.Month(), dueDay, 0, 0, 0, 0, time.UTC)
}
