package wizard

import (
	"context"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/enrich"
)

// Enrich runs p over d using the enrichment column named in cfg.
func Enrich(ctx context.Context, p enrich.Provider, d csvdata.Dataset, cfg Config) (csvdata.Dataset, error) {
	return p.Enrich(ctx, d, cfg.ColumnToEnrich)
}
