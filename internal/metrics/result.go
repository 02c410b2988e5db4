package metrics

import (
	"errors"

	"github.com/imamik/hpcmaker/internal/provisioning"
)

// Result maps an error to a result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultSuccess
	case errors.Is(err, provisioning.ErrAborted):
		return ResultAborted
	default:
		return ResultError
	}
}
