package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
	"github.com/aulatech/cobranza/internal/clock"
	"github.com/aulatech/cobranza/internal/config"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	directoryservice "github.com/aulatech/cobranza/internal/directory/service"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	ledgerservice "github.com/aulatech/cobranza/internal/ledger/service"
	"github.com/aulatech/cobranza/internal/reconciliation/domain"
	"github.com/aulatech/cobranza/internal/reconciliation/matcher"
)

type reconFixture struct {
	svc       domain.Service
	ledgerSvc ledgerdomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	cycleID   snowflake.ID
	student   directorydomain.Student
}

func setupRecon(t *testing.T) *reconFixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&directorydomain.SchoolCycle{},
		&directorydomain.Group{},
		&directorydomain.Student{},
		&directorydomain.ChargeConcept{},
		&ledgerdomain.Invoice{},
		&ledgerdomain.InvoiceLine{},
		&ledgerdomain.Payment{},
		&ledgerdomain.InvoiceCounter{},
		&bankdomain.BankTransaction{},
		&domain.ReconciliationRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	directory := directoryservice.NewService(directoryservice.Params{DB: db, Log: log})
	ledgerImpl := ledgerservice.NewService(ledgerservice.Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Directory: directory,
	})

	f := &reconFixture{
		ledgerSvc: ledgerservice.AsDomainService(ledgerImpl),
		db:        db,
		node:      node,
		clock:     fake,
	}

	cycle := directorydomain.SchoolCycle{
		ID:        node.Generate(),
		Name:      "2025-2026",
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	require.NoError(t, db.Create(&cycle).Error)
	f.cycleID = cycle.ID

	f.student = directorydomain.Student{
		ID:        node.Generate(),
		Code:      "A1109",
		FirstName: "Ana",
		LastName:  "Lopez",
		Active:    true,
	}
	require.NoError(t, db.Create(&f.student).Error)

	f.svc = NewService(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Directory:  directory,
		Engine:     ledgerservice.AsEngine(ledgerImpl),
		Extractor:  matcher.NewRegexExtractor(),
		BillingCfg: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})

	return f
}

func (f *reconFixture) createInvoice(t *testing.T, amount string, dueDate time.Time) ledgerdomain.Invoice {
	t.Helper()
	value, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	invoice, err := f.ledgerSvc.Create(context.Background(), ledgerdomain.CreateInvoiceRequest{
		StudentID: f.student.ID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    value,
		DueDate:   &dueDate,
		Emit:      true,
	})
	require.NoError(t, err)
	return invoice
}

func (f *reconFixture) createDeposit(t *testing.T, description, amount string) bankdomain.BankTransaction {
	t.Helper()
	value, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	txn := bankdomain.BankTransaction{
		ID:          f.node.Generate(),
		Date:        time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC),
		Amount:      value,
		Balance:     decimal.NewFromInt(100000),
		Direction:   bankdomain.DirectionDeposit,
		Description: description,
		DedupHash:   fmt.Sprintf("hash-%s", f.node.Generate()),
		Status:      bankdomain.StatusUnreconciled,
	}
	require.NoError(t, f.db.Create(&txn).Error)
	return txn
}

func TestSuggestExactAmount(t *testing.T) {
	f := setupRecon(t)
	due := time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)
	invoice := f.createInvoice(t, "5000.00", due)
	txn := f.createDeposit(t, "TRANSFERENCIA SPEI MATRICULA: A1109", "5000.00")

	candidates, err := f.svc.Suggest(context.Background(), txn.ID.String())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, invoice.ID, candidates[0].InvoiceID)
	assert.Equal(t, "Ana Lopez", candidates[0].StudentName)
	assert.InDelta(t, 0.95, candidates[0].Confidence, 1e-9)
	assert.Equal(t, "identifier match, exact amount", candidates[0].Reason)
}

func TestSuggestFIFOWhenNoExactAmount(t *testing.T) {
	f := setupRecon(t)
	jan := f.createInvoice(t, "1000.00", time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC))
	feb := f.createInvoice(t, "1000.00", time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))
	mar := f.createInvoice(t, "1000.00", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "PAGO ALUMNO A1109", "700.00")

	candidates, err := f.svc.Suggest(context.Background(), txn.ID.String())
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, jan.ID, candidates[0].InvoiceID)
	assert.InDelta(t, 0.85, candidates[0].Confidence, 1e-9)

	assert.Equal(t, feb.ID, candidates[1].InvoiceID)
	assert.InDelta(t, 0.60, candidates[1].Confidence, 1e-9)
	assert.Equal(t, mar.ID, candidates[2].InvoiceID)
}

func TestSuggestNumericToken(t *testing.T) {
	f := setupRecon(t)
	invoice := f.createInvoice(t, "3000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "DEPOSITO ALUMNO 1109", "3000.00")

	candidates, err := f.svc.Suggest(context.Background(), txn.ID.String())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, invoice.ID, candidates[0].InvoiceID)
	assert.InDelta(t, 0.95, candidates[0].Confidence, 1e-9)
}

func TestSuggestGlobalFallback(t *testing.T) {
	f := setupRecon(t)
	invoice := f.createInvoice(t, "5000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "DEPOSITO EN EFECTIVO", "5010.00")

	candidates, err := f.svc.Suggest(context.Background(), txn.ID.String())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, invoice.ID, candidates[0].InvoiceID)
	assert.GreaterOrEqual(t, candidates[0].Confidence, 0.5)
}

func TestSuggestNothingBelowThreshold(t *testing.T) {
	f := setupRecon(t)
	f.createInvoice(t, "5000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "DEPOSITO EN EFECTIVO", "123.45")

	candidates, err := f.svc.Suggest(context.Background(), txn.ID.String())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSuggestRequiresUnreconciled(t *testing.T) {
	f := setupRecon(t)
	txn := f.createDeposit(t, "DEPOSITO", "100.00")
	require.NoError(t, f.db.Model(&bankdomain.BankTransaction{}).
		Where("id = ?", txn.ID).
		Update("status", bankdomain.StatusReconciled).Error)

	_, err := f.svc.Suggest(context.Background(), txn.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotUnreconciled)

	_, err = f.svc.Suggest(context.Background(), "garbage")
	assert.ErrorIs(t, err, domain.ErrInvalidTransaction)

	_, err = f.svc.Suggest(context.Background(), f.node.Generate().String())
	assert.ErrorIs(t, err, bankdomain.ErrTransactionNotFound)
}

func TestReconcileCreatesPaymentAndSettlesInvoice(t *testing.T) {
	f := setupRecon(t)
	ctx := context.Background()
	invoice := f.createInvoice(t, "5000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "TRANSFERENCIA SPEI MATRICULA: A1109", "5000.00")

	invoiceID := invoice.ID.String()
	studentID := f.student.ID.String()
	err := f.svc.Reconcile(ctx, domain.ReconcileRequest{
		TransactionID: txn.ID.String(),
		StudentID:     &studentID,
		InvoiceID:     &invoiceID,
	})
	require.NoError(t, err)

	var updatedTxn bankdomain.BankTransaction
	require.NoError(t, f.db.First(&updatedTxn, "id = ?", txn.ID).Error)
	assert.Equal(t, bankdomain.StatusReconciled, updatedTxn.Status)

	var payment ledgerdomain.Payment
	require.NoError(t, f.db.First(&payment, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, ledgerdomain.PaymentStatusConfirmed, payment.Status)
	assert.True(t, payment.Amount.Equal(txn.Amount))
	assert.Equal(t, txn.Date.UTC(), payment.PaymentDate.UTC())

	updatedInvoice, err := f.ledgerSvc.GetByID(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPaid, updatedInvoice.Status)

	var record domain.ReconciliationRecord
	require.NoError(t, f.db.First(&record, "bank_transaction_id = ?", txn.ID).Error)
	require.NotNil(t, record.PaymentID)
	assert.Equal(t, payment.ID, *record.PaymentID)

	// reconciling again is a no-op
	require.NoError(t, f.svc.Reconcile(ctx, domain.ReconcileRequest{TransactionID: txn.ID.String()}))

	var paymentCount int64
	require.NoError(t, f.db.Model(&ledgerdomain.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)
}

func TestReconcileIgnoredTransaction(t *testing.T) {
	f := setupRecon(t)
	txn := f.createDeposit(t, "COMISION", "150.00")
	require.NoError(t, f.db.Model(&bankdomain.BankTransaction{}).
		Where("id = ?", txn.ID).
		Update("status", bankdomain.StatusIgnored).Error)

	err := f.svc.Reconcile(context.Background(), domain.ReconcileRequest{TransactionID: txn.ID.String()})
	assert.ErrorIs(t, err, domain.ErrTransactionIgnored)
}

func TestReconcileWithoutInvoiceOnlyMarks(t *testing.T) {
	f := setupRecon(t)
	ctx := context.Background()
	txn := f.createDeposit(t, "DONATIVO ANUAL", "2500.00")

	comment := "donation, no invoice"
	require.NoError(t, f.svc.Reconcile(ctx, domain.ReconcileRequest{
		TransactionID: txn.ID.String(),
		Comment:       &comment,
	}))

	var record domain.ReconciliationRecord
	require.NoError(t, f.db.First(&record, "bank_transaction_id = ?", txn.ID).Error)
	assert.Nil(t, record.InvoiceID)
	assert.Nil(t, record.PaymentID)
	require.NotNil(t, record.Comment)
	assert.Equal(t, comment, *record.Comment)

	var paymentCount int64
	require.NoError(t, f.db.Model(&ledgerdomain.Payment{}).Count(&paymentCount).Error)
	assert.Zero(t, paymentCount)
}

func TestRevertRestoresEverything(t *testing.T) {
	f := setupRecon(t)
	ctx := context.Background()
	invoice := f.createInvoice(t, "5000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "TRANSFERENCIA SPEI MATRICULA: A1109", "5000.00")

	invoiceID := invoice.ID.String()
	require.NoError(t, f.svc.Reconcile(ctx, domain.ReconcileRequest{
		TransactionID: txn.ID.String(),
		InvoiceID:     &invoiceID,
	}))

	require.NoError(t, f.svc.Revert(ctx, txn.ID.String()))

	var updatedTxn bankdomain.BankTransaction
	require.NoError(t, f.db.First(&updatedTxn, "id = ?", txn.ID).Error)
	assert.Equal(t, bankdomain.StatusUnreconciled, updatedTxn.Status)

	var payment ledgerdomain.Payment
	require.NoError(t, f.db.First(&payment, "invoice_id = ?", invoice.ID).Error)
	assert.Equal(t, ledgerdomain.PaymentStatusVoid, payment.Status)

	updatedInvoice, err := f.ledgerSvc.GetByID(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPending, updatedInvoice.Status)

	var recordCount int64
	require.NoError(t, f.db.Model(&domain.ReconciliationRecord{}).Count(&recordCount).Error)
	assert.Zero(t, recordCount)

	// reverting an unreconciled transaction is a no-op
	require.NoError(t, f.svc.Revert(ctx, txn.ID.String()))

	// and the transaction can be reconciled again
	require.NoError(t, f.svc.Reconcile(ctx, domain.ReconcileRequest{
		TransactionID: txn.ID.String(),
		InvoiceID:     &invoiceID,
	}))
	updatedInvoice, err = f.ledgerSvc.GetByID(ctx, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPaid, updatedInvoice.Status)
}

func TestReconcileCanceledInvoiceRejected(t *testing.T) {
	f := setupRecon(t)
	ctx := context.Background()
	invoice := f.createInvoice(t, "5000.00", time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	txn := f.createDeposit(t, "PAGO", "5000.00")

	_, err := f.ledgerSvc.Cancel(ctx, invoice.ID.String(), "enrollment withdrawn")
	require.NoError(t, err)

	invoiceID := invoice.ID.String()
	err = f.svc.Reconcile(ctx, domain.ReconcileRequest{
		TransactionID: txn.ID.String(),
		InvoiceID:     &invoiceID,
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvoiceCanceled)
}
