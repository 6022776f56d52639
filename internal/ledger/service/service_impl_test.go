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

	"github.com/aulatech/cobranza/internal/clock"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	directoryservice "github.com/aulatech/cobranza/internal/directory/service"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
)

type ledgerFixture struct {
	svc       *Service
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	cycleID   snowflake.ID
	studentID snowflake.ID
}

func setupLedger(t *testing.T) *ledgerFixture {
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
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zaptest.NewLogger(t)

	directory := directoryservice.NewService(directoryservice.Params{DB: db, Log: log})

	cycle := directorydomain.SchoolCycle{
		ID:        node.Generate(),
		Name:      "2025-2026",
		StartDate: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Active:    true,
	}
	require.NoError(t, db.Create(&cycle).Error)

	student := directorydomain.Student{
		ID:        node.Generate(),
		Code:      "A1109",
		FirstName: "Ana",
		LastName:  "Lopez",
		Active:    true,
	}
	require.NoError(t, db.Create(&student).Error)

	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fake,
		Directory: directory,
	})

	return &ledgerFixture{
		svc:       svc,
		db:        db,
		node:      node,
		clock:     fake,
		cycleID:   cycle.ID,
		studentID: student.ID,
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		Emit:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Number)
	assert.Equal(t, ledgerdomain.InvoiceStatusPending, first.Status)

	second, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(500),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Number)
	assert.Equal(t, ledgerdomain.InvoiceStatusDraft, second.Status)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: "not-a-number",
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidStudentID)

	_, err = f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.Zero,
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.node.Generate().String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, directorydomain.ErrStudentNotFound)
}

func TestRegisterPaymentTransitions(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		Emit:      true,
	})
	require.NoError(t, err)

	partial, err := f.svc.RegisterPayment(ctx, ledgerdomain.RegisterPaymentRequest{
		InvoiceID: invoice.ID.String(),
		Amount:    decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPartiallyPaid, partial.Status)

	paid, err := f.svc.RegisterPayment(ctx, ledgerdomain.RegisterPaymentRequest{
		InvoiceID: invoice.ID.String(),
		Amount:    decimal.NewFromInt(600),
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusPaid, paid.Status)
}

func TestRegisterPaymentOnCanceledInvoice(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		Emit:      true,
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, invoice.ID.String(), "capture error")
	require.NoError(t, err)

	_, err = f.svc.RegisterPayment(ctx, ledgerdomain.RegisterPaymentRequest{
		InvoiceID: invoice.ID.String(),
		Amount:    decimal.NewFromInt(100),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvoiceCanceled)
}

func TestCancel(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		Emit:      true,
	})
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, invoice.ID.String(), "duplicate charge")
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusCanceled, canceled.Status)
	require.NotNil(t, canceled.CancelReason)
	assert.Equal(t, "duplicate charge", *canceled.CancelReason)

	// cancel is idempotent
	again, err := f.svc.Cancel(ctx, invoice.ID.String(), "duplicate charge")
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusCanceled, again.Status)
}

func TestCancelPaidInvoice(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		Emit:      true,
	})
	require.NoError(t, err)

	_, err = f.svc.RegisterPayment(ctx, ledgerdomain.RegisterPaymentRequest{
		InvoiceID: invoice.ID.String(),
		Amount:    decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, invoice.ID.String(), "too late")
	assert.ErrorIs(t, err, ledgerdomain.ErrCancelPaid)
}

func TestOverdueAfterDueDate(t *testing.T) {
	f := setupLedger(t)
	ctx := context.Background()

	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	invoice, err := f.svc.Create(ctx, ledgerdomain.CreateInvoiceRequest{
		StudentID: f.studentID.String(),
		CycleID:   f.cycleID.String(),
		Amount:    decimal.NewFromInt(1000),
		DueDate:   &due,
		Emit:      true,
	})
	require.NoError(t, err)

	f.clock.Advance(15 * 24 * time.Hour)

	var updated ledgerdomain.Invoice
	err = f.db.Transaction(func(tx *gorm.DB) error {
		updated, err = f.svc.RecomputeInvoice(ctx, tx, invoice.ID)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.InvoiceStatusOverdue, updated.Status)
}
