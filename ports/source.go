package ports

import (
	"context"

	"dqmon/domain/quality"
)

// DatasetSource materializes the tabular snapshot evaluated by one cycle
type DatasetSource interface {
	// Load runs the source query or reads the file. Any error is a load failure
	// for the cycle.
	Load(ctx context.Context) (*quality.Dataset, error)

	// Name identifies the source in reports and logs
	Name() string
}
