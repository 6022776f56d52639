package reconciliation

import (
	"github.com/aulatech/cobranza/internal/reconciliation/matcher"
	"github.com/aulatech/cobranza/internal/reconciliation/service"
	"go.uber.org/fx"
)

func provideExtractor() matcher.Extractor { return matcher.NewRegexExtractor() }

var Module = fx.Module("reconciliation.service",
	fx.Provide(provideExtractor),
	fx.Provide(service.NewService),
)
