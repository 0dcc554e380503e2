package providers

import (
	"github.com/smallbiznis/schoolride/internal/providers/email"
	"github.com/smallbiznis/schoolride/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
