package letters

import (
	"context"
	"time"
)

// Trigger forces an immediate sweep (best-effort, non-blocking).
func (s *Service) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastSweepAt    *time.Time `json:"lastSweepAt,omitempty"`
	SweepsStarted  int64      `json:"sweepsStarted"`
	SweepsFinished int64      `json:"sweepsFinished"`
	LettersSwept   int64      `json:"lettersSwept"`
	SweepErrors    int64      `json:"sweepErrors"`
}

func (s *Service) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, s.startedAtUnixNano).UTC(),
		SweepsStarted:  s.sweepsStarted.Load(),
		SweepsFinished: s.sweepsFinished.Load(),
		LettersSwept:   s.lettersSwept.Load(),
		SweepErrors:    s.sweepErrors.Load(),
	}
	if n := s.lastSweepUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastSweepAt = &t
	}
	return st
}

// Run гоняет периодические проходы по всем нефинальным письмам.
// Проход также можно форсировать через Trigger. Если интервал не задан,
// остаётся только ручной запуск.
func (s *Service) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.sweepInterval > 0 {
		t := time.NewTicker(s.sweepInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			s.runOnce(ctx)
		case <-s.triggerCh:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	s.sweepsStarted.Add(1)
	s.sweep(ctx, nil, nil)
}
