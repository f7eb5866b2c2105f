package source

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jrodrigopuca/tracking/internal/session"
)

// Pace modes of the synthetic walker.
type Mode string

const (
	ModeWalking Mode = "walking"
	ModeJogging Mode = "jogging"
	ModeRunning Mode = "running"
	ModeResting Mode = "resting"
)

type modeProfile struct {
	minSpeedKmh float64
	maxSpeedKmh float64
	minDuration time.Duration
	maxDuration time.Duration
}

var profiles = map[Mode]modeProfile{
	ModeWalking: {minSpeedKmh: 3, maxSpeedKmh: 6, minDuration: 20 * time.Second, maxDuration: 2 * time.Minute},
	ModeJogging: {minSpeedKmh: 7, maxSpeedKmh: 10, minDuration: 30 * time.Second, maxDuration: 3 * time.Minute},
	ModeRunning: {minSpeedKmh: 11, maxSpeedKmh: 16, minDuration: 15 * time.Second, maxDuration: 90 * time.Second},
	ModeResting: {minSpeedKmh: 0, maxSpeedKmh: 0, minDuration: 10 * time.Second, maxDuration: time.Minute},
}

type transition struct {
	to     Mode
	weight float64
}

// Markov transition table: rows are the current mode, weights are
// relative (not required to sum to 1).
var transitions = map[Mode][]transition{
	ModeWalking: {{ModeWalking, 5}, {ModeJogging, 3}, {ModeResting, 2}},
	ModeJogging: {{ModeJogging, 4}, {ModeWalking, 3}, {ModeRunning, 2}, {ModeResting, 1}},
	ModeRunning: {{ModeRunning, 3}, {ModeJogging, 4}, {ModeWalking, 3}},
	ModeResting: {{ModeWalking, 7}, {ModeResting, 3}},
}

const kmPerDegLat = 111.32

// Simulator is a synthetic position source: a walker that wanders from
// a start coordinate, switching pace modes through the transition
// table. It lives entirely outside the engine, which sees only the
// Source contract.
type Simulator struct {
	StartLat float64
	StartLng float64
	Interval time.Duration
	Seed     int64
}

func (s *Simulator) Start(onFix FixFunc, onError ErrFunc) (CancelFunc, error) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	seed := s.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	w := &walker{
		lat:     s.StartLat,
		lng:     s.StartLng,
		rng:     rand.New(rand.NewSource(seed)),
		mode:    ModeWalking,
		bearing: 0,
	}
	w.bearing = w.rng.Float64() * 360
	w.enterMode(ModeWalking)

	done := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	canceled := false

	// Delivery and cancellation share a lock: once cancel returns, no
	// further onFix invocation can start.
	cancel := func() {
		once.Do(func() {
			mu.Lock()
			canceled = true
			mu.Unlock()
			close(done)
		})
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				fix := w.step(interval, now)
				mu.Lock()
				if canceled {
					mu.Unlock()
					return
				}
				onFix(fix)
				mu.Unlock()
			}
		}
	}()

	return cancel, nil
}

type walker struct {
	lat, lng  float64
	bearing   float64
	rng       *rand.Rand
	mode      Mode
	speedKmh  float64
	remaining time.Duration
}

func (w *walker) enterMode(m Mode) {
	p := profiles[m]
	w.mode = m
	w.speedKmh = p.minSpeedKmh + w.rng.Float64()*(p.maxSpeedKmh-p.minSpeedKmh)
	w.remaining = p.minDuration + time.Duration(w.rng.Float64()*float64(p.maxDuration-p.minDuration))
}

func (w *walker) nextMode() Mode {
	rows := transitions[w.mode]
	total := 0.0
	for _, t := range rows {
		total += t.weight
	}
	pick := w.rng.Float64() * total
	for _, t := range rows {
		pick -= t.weight
		if pick <= 0 {
			return t.to
		}
	}
	return rows[len(rows)-1].to
}

func (w *walker) step(dt time.Duration, now time.Time) session.Position {
	w.remaining -= dt
	if w.remaining <= 0 {
		w.enterMode(w.nextMode())
	}

	if w.speedKmh > 0 {
		// Wander: jitter the bearing a little each tick.
		w.bearing += (w.rng.Float64() - 0.5) * 30
		w.bearing = math.Mod(w.bearing+360, 360)

		distKm := w.speedKmh * dt.Hours()
		rad := w.bearing * math.Pi / 180
		w.lat += distKm * math.Cos(rad) / kmPerDegLat
		w.lng += distKm * math.Sin(rad) / (kmPerDegLat * math.Cos(w.lat*math.Pi/180))
	}

	return session.Position{
		Lat:       w.lat,
		Lng:       w.lng,
		AccuracyM: 5 + w.rng.Float64()*10,
		Timestamp: now,
	}
}
