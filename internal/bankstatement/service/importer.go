package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
	"github.com/aulatech/cobranza/internal/clock"
	obsmetrics "github.com/aulatech/cobranza/internal/observability/metrics"
	"github.com/aulatech/cobranza/pkg/repository"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// expected statement columns, addressed by header so column order is free
const (
	colDate        = "FECHA"
	colDescription = "DESCRIPCION"
	colDeposit     = "DEPOSITO"
	colWithdrawal  = "RETIRO"
	colBalance     = "SALDO"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics

	transactions repository.Repository[bankdomain.BankTransaction]
}

func NewService(p Params) bankdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bankstatement.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,

		transactions: repository.ProvideStore[bankdomain.BankTransaction](p.DB),
	}
}

// Import parses a bank CSV export and persists the rows not seen before.
// Deposits arrive unreconciled; withdrawals are ignored on arrival since only
// incoming funds can pay tuition.
func (s *Service) Import(ctx context.Context, statement io.Reader) (bankdomain.ImportResult, error) {
	reader := csv.NewReader(statement)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return bankdomain.ImportResult{}, bankdomain.ErrMissingHeader
	}
	columns := indexColumns(header)
	for _, required := range []string{colDate, colDescription, colBalance} {
		if _, ok := columns[required]; !ok {
			return bankdomain.ImportResult{}, bankdomain.ErrMissingHeader
		}
	}

	var result bankdomain.ImportResult
	seen := make(map[string]struct{})
	now := s.clock.Now()
	var toCreate []*bankdomain.BankTransaction

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		field := func(name string) string {
			idx, ok := columns[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		description := field(colDescription)
		deposit, hasDeposit := parseCurrency(field(colDeposit))
		withdrawal, hasWithdrawal := parseCurrency(field(colWithdrawal))
		if description == "" || (!hasDeposit && !hasWithdrawal) {
			result.Skipped++
			s.recordRow("invalid")
			continue
		}

		date, err := parseStatementDate(field(colDate))
		if err != nil {
			result.Skipped++
			s.recordRow("invalid")
			continue
		}

		balance, _ := parseCurrency(field(colBalance))

		direction := bankdomain.DirectionDeposit
		amount := deposit
		status := bankdomain.StatusUnreconciled
		if !hasDeposit {
			direction = bankdomain.DirectionWithdrawal
			amount = withdrawal
			status = bankdomain.StatusIgnored
		}
		amount = amount.Abs().Round(2)

		signed := amount
		if direction == bankdomain.DirectionWithdrawal {
			signed = amount.Neg()
		}
		hash := dedupHash(date, signed, description)

		if _, dup := seen[hash]; dup {
			result.Skipped++
			s.recordRow("duplicate")
			continue
		}
		seen[hash] = struct{}{}

		existing, err := s.transactions.FindOne(ctx, &bankdomain.BankTransaction{DedupHash: hash})
		if err != nil {
			return bankdomain.ImportResult{}, err
		}
		if existing != nil {
			result.Skipped++
			s.recordRow("duplicate")
			continue
		}

		toCreate = append(toCreate, &bankdomain.BankTransaction{
			ID:          s.genID.Generate(),
			Date:        date,
			Amount:      amount,
			Balance:     balance.Round(2),
			Direction:   direction,
			Description: description,
			DedupHash:   hash,
			Status:      status,
			CreatedAt:   now,
		})

		result.Imported++
		if direction == bankdomain.DirectionDeposit {
			result.Deposits++
		} else {
			result.Withdrawals++
		}
		s.recordRow("imported")
	}

	if err := s.transactions.BatchCreate(ctx, toCreate); err != nil {
		return bankdomain.ImportResult{}, err
	}

	s.log.Info("bank statement imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("deposits", result.Deposits),
		zap.Int("withdrawals", result.Withdrawals))
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (bankdomain.BankTransaction, error) {
	item, err := s.transactions.FindOne(ctx, &bankdomain.BankTransaction{ID: id})
	if err != nil {
		return bankdomain.BankTransaction{}, err
	}
	if item == nil {
		return bankdomain.BankTransaction{}, bankdomain.ErrTransactionNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req bankdomain.ListTransactionsRequest) (bankdomain.ListTransactionsResponse, error) {
	filter := &bankdomain.BankTransaction{}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	items, err := s.transactions.Find(ctx, filter)
	if err != nil {
		return bankdomain.ListTransactionsResponse{}, err
	}

	transactions := make([]bankdomain.BankTransaction, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		transactions = append(transactions, *item)
	}
	return bankdomain.ListTransactionsResponse{Transactions: transactions}, nil
}

func (s *Service) recordRow(outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordStatementRow(outcome)
	}
}

// indexColumns maps normalized header names to their positions, tolerating
// accents and case differences between bank exports.
func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeHeader(name)] = i
	}
	return columns
}

func normalizeHeader(name string) string {
	replacer := strings.NewReplacer(
		"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ñ", "N",
		"á", "A", "é", "E", "í", "I", "ó", "O", "ú", "U", "ñ", "N",
	)
	return strings.ToUpper(strings.TrimSpace(replacer.Replace(name)))
}
