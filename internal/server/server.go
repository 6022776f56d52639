package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aulatech/cobranza/internal/bankstatement"
	bankdomain "github.com/aulatech/cobranza/internal/bankstatement/domain"
	"github.com/aulatech/cobranza/internal/billing"
	billingdomain "github.com/aulatech/cobranza/internal/billing/domain"
	"github.com/aulatech/cobranza/internal/config"
	"github.com/aulatech/cobranza/internal/directory"
	directorydomain "github.com/aulatech/cobranza/internal/directory/domain"
	"github.com/aulatech/cobranza/internal/ledger"
	ledgerdomain "github.com/aulatech/cobranza/internal/ledger/domain"
	obsmetrics "github.com/aulatech/cobranza/internal/observability/metrics"
	"github.com/aulatech/cobranza/internal/reconciliation"
	reconciliationdomain "github.com/aulatech/cobranza/internal/reconciliation/domain"
	"github.com/aulatech/cobranza/internal/taxdoc"
	taxdocdomain "github.com/aulatech/cobranza/internal/taxdoc/domain"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	directory.Module,
	ledger.Module,
	billing.Module,
	bankstatement.Module,
	reconciliation.Module,
	taxdoc.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	l := log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	invoiceSvc ledgerdomain.Service
	billingSvc billingdomain.Service
	bankSvc    bankdomain.Service
	reconSvc   reconciliationdomain.Service
	dirSvc     directorydomain.Service
	taxdocProv taxdocdomain.Provider
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	InvoiceSvc ledgerdomain.Service
	BillingSvc billingdomain.Service
	BankSvc    bankdomain.Service
	ReconSvc   reconciliationdomain.Service
	DirSvc     directorydomain.Service
	TaxdocProv taxdocdomain.Provider
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		invoiceSvc: p.InvoiceSvc,
		billingSvc: p.BillingSvc,
		bankSvc:    p.BankSvc,
		reconSvc:   p.ReconSvc,
		dirSvc:     p.DirSvc,
		taxdocProv: p.TaxdocProv,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/payments", s.RegisterPayment)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.POST("/invoices/:id/stamp", s.StampInvoice)

	// -------- Recurring charges --------
	api.POST("/billing/generate-monthly", s.GenerateMonthly)
	api.POST("/billing/late-fees", s.ApplyLateFees)

	// -------- Bank statements --------
	api.POST("/bank/statements", s.ImportStatement)
	api.GET("/bank/transactions", s.ListTransactions)
	api.GET("/bank/transactions/:id", s.GetTransactionByID)

	// -------- Reconciliation --------
	api.GET("/bank/transactions/:id/suggestions", s.SuggestMatches)
	api.POST("/reconciliations", s.Reconcile)
	api.POST("/bank/transactions/:id/revert", s.RevertReconciliation)
}
