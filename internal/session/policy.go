package session

import "time"

// RejectReason explains why a fix was not recorded. Empty means
// accepted.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectDuplicate   RejectReason = "duplicate"
	RejectTooFrequent RejectReason = "too_frequent"
	RejectInactive    RejectReason = "inactive"
)

// IngestionPolicy gates which fixes become route points. The zero value
// (and a nil policy) accepts every fix; continuous sources that already
// throttle at the hardware level run unthrottled, while noisy sources
// enable dedup and a minimum interval between accepted fixes.
type IngestionPolicy struct {
	MinInterval time.Duration
	Dedup       bool

	lastAccepted time.Time
}

// Admit decides whether fix may be appended after the given points.
// Accepting updates the last-accepted stamp, so call it exactly once
// per ingestion event. now is read once by the caller per event.
func (p *IngestionPolicy) Admit(fix Position, points []RoutePoint, now time.Time) RejectReason {
	if p == nil {
		return RejectNone
	}
	if p.Dedup {
		for _, pt := range points {
			if pt.Lat == fix.Lat && pt.Lng == fix.Lng {
				return RejectDuplicate
			}
		}
	}
	if p.MinInterval > 0 && !p.lastAccepted.IsZero() && now.Sub(p.lastAccepted) < p.MinInterval {
		return RejectTooFrequent
	}
	p.lastAccepted = now
	return RejectNone
}
