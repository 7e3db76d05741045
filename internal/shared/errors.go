package shared

import (
	"fmt"

	"github.com/dgknshn20/yapigraniterp/internal/platform/httpx"
)

// ErrInvalidStatus indicates a state-machine precondition violation. It
// wraps the httpx validation class so handlers can pass it straight to
// httpx.RespondError.
var ErrInvalidStatus = fmt.Errorf("%w: invalid status transition", httpx.ErrValidation)
