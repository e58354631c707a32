package harvest

import (
	"context"
	"errors"

	"github.com/donaldgifford/meli-harvester/internal/config"
	"github.com/donaldgifford/meli-harvester/internal/meli"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// ErrSink marks a failure to persist a finished result.
var ErrSink = errors.New("saving result")

// Classify maps a run error to the failure reason reported to operators.
// Anything not recognized is treated as a network failure.
func Classify(err error) domain.FailureReason {
	var (
		missing *config.MissingError
		authErr *meli.AuthError
	)
	switch {
	case err == nil:
		return domain.ReasonNone
	case errors.As(err, &missing):
		return domain.ReasonConfig
	case errors.Is(err, meli.ErrAuthExpired):
		return domain.ReasonAuthExpired
	case errors.Is(err, context.Canceled):
		return domain.ReasonCanceled
	case errors.As(err, &authErr):
		return domain.ReasonAuth
	case errors.Is(err, ErrSink):
		return domain.ReasonSink
	default:
		return domain.ReasonNetwork
	}
}
