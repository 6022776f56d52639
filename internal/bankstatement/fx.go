package bankstatement

import (
	"github.com/aulatech/cobranza/internal/bankstatement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("bankstatement.service",
	fx.Provide(service.NewService),
)
