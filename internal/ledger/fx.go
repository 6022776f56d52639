package ledger

import (
	"github.com/aulatech/cobranza/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
	fx.Provide(service.AsDomainService),
	fx.Provide(service.AsEngine),
)
