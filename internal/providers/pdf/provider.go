package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateDayReport(ctx context.Context, data DayReportData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateDayReport(ctx context.Context, data DayReportData) (io.Reader, error) {
	return nil, nil
}
