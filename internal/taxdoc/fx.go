package taxdoc

import (
	"github.com/aulatech/cobranza/internal/taxdoc/domain"
	"go.uber.org/fx"
)

func provideDisabled() domain.Provider { return domain.DisabledProvider{} }

var Module = fx.Module("taxdoc",
	fx.Provide(provideDisabled),
)
