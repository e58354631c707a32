// Package sink defines where finished extraction results are written and
// provides the file and fan-out implementations.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/donaldgifford/meli-harvester/internal/metrics"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ErrNoResult is returned by a Reader that has never stored a result.
var ErrNoResult = errors.New("no extraction result stored")

// ResultSink persists one finished extraction result.
type ResultSink interface {
	Save(ctx context.Context, result *domain.ExtractionResult) error
}

// Reader returns the most recently stored extraction result.
type Reader interface {
	Latest(ctx context.Context) (*domain.ExtractionResult, error)
}

// Target is a named sink. The name labels failure metrics and errors.
type Target struct {
	Name string
	Sink ResultSink
}

// Multi fans a result out to every target. All targets are attempted even
// when one fails.
type Multi struct {
	targets []Target
}

// NewMulti creates a fan-out sink.
func NewMulti(targets ...Target) *Multi {
	return &Multi{targets: targets}
}

// Len returns the number of configured targets.
func (m *Multi) Len() int {
	return len(m.targets)
}

// Save writes result to every target and joins the failures.
func (m *Multi) Save(ctx context.Context, result *domain.ExtractionResult) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.Sink.Save(ctx, result); err != nil {
			metrics.SinkFailuresTotal.WithLabelValues(t.Name).Inc()
			errs = append(errs, fmt.Errorf("%s sink: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}
