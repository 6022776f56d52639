package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
	billingdomain "github.com/aulatech/cobranza/internal/billing/domain"
	"github.com/aulatech/cobranza/internal/config"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	reconciliationdomain "github.com/aulatech/cobranza/internal/reconciliation/domain"
	"github.com/aulatech/cobranza/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// versioned migrations target postgres; other dialects are for
			// local development and tests
			if err := conn.AutoMigrate(
				&directorydomain.SchoolCycle{},
				&directorydomain.Group{},
				&directorydomain.Student{},
				&directorydomain.ChargeConcept{},
				&ledgerdomain.Invoice{},
				&ledgerdomain.InvoiceLine{},
				&ledgerdomain.Payment{},
				&ledgerdomain.InvoiceCounter{},
				&billingdomain.ChargeRule{},
				&billingdomain.LateFeeRule{},
				&billingdomain.Scholarship{},
				&bankdomain.BankTransaction{},
				&reconciliationdomain.ReconciliationRecord{},
			); err != nil {
				return err
			}
		}

		return seed.EnsureDefaults(conn)
	}),
)
