package presentation

import (
	"fmt"

	"github.com/bennydictor/visualmath/pkg/types"
)

// Role transition errors
var (
	ErrNotAttached   = fmt.Errorf("%w: connection has not joined or presented", types.ErrForbidden)
	ErrNotPresenting = fmt.Errorf("%w: connection is not presenting", types.ErrForbidden)
	ErrNotViewing    = fmt.Errorf("%w: connection is not viewing", types.ErrForbidden)
	ErrWrongUser     = fmt.Errorf("%w: token does not belong to the user who attached", types.ErrForbidden)
)

// Navigation errors
var (
	ErrSessionEnded  = fmt.Errorf("%w: started lecture has ended", types.ErrForbidden)
	ErrFirstModule   = fmt.Errorf("%w: already at the first module", types.ErrForbidden)
	ErrLastModule    = fmt.Errorf("%w: already at the last module", types.ErrForbidden)
	ErrModuleChanged = fmt.Errorf("%w: current module changed", types.ErrForbidden)
	ErrNoGate        = fmt.Errorf("%w: current module cannot be started or stopped", types.ErrForbidden)
)

// Answer errors
var (
	ErrModuleNotStarted = fmt.Errorf("%w: current module is not open for answers", types.ErrForbidden)
	ErrNoSuchQuestion   = fmt.Errorf("%w: no question at that index", types.ErrBadRequest)
)
