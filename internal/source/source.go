package source

import (
	"fmt"

	"github.com/jrodrigopuca/tracking/internal/session"
)

// Error codes reported by a position source. Codes 1-3 mirror the
// browser geolocation taxonomy; 0 means no positioning capability at
// all.
const (
	CodeUnsupported      = 0
	CodePermissionDenied = 1
	CodeUnavailable      = 2
	CodeTimeout          = 3
)

type Error struct {
	Code    int
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("position source error %d: %s", e.Code, e.Message)
}

type (
	FixFunc    func(session.Position)
	ErrFunc    func(Error)
	CancelFunc func()
)

// Source produces a stream of position fixes. Start returns a cancel
// function that is idempotent and guarantees no further callbacks are
// delivered once it returns.
type Source interface {
	Start(onFix FixFunc, onError ErrFunc) (CancelFunc, error)
}
