package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"vidrelay/internal/ledger"
	"vidrelay/internal/store"
	"vidrelay/internal/telemetry"
)

// SweepResult reports what one sweep removed.
type SweepResult struct {
	SessionsEvicted int `json:"sessions_evicted"`
	JobsEvicted     int `json:"jobs_evicted"`
}

// Janitor periodically drops idle sessions and old job records. Sessions and
// jobs age independently: a job is evicted by its creation time whether or not
// its session survived.
type Janitor struct {
	jobs      *store.JobStore
	ledger    *ledger.Ledger
	interval  time.Duration
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewJanitor(jobs *store.JobStore, l *ledger.Ledger, interval, retention time.Duration, log zerolog.Logger) *Janitor {
	return &Janitor{
		jobs:      jobs,
		ledger:    l,
		interval:  interval,
		retention: retention,
		log:       log.With().Str("component", "janitor").Logger(),
		now:       time.Now,
	}
}

// Sweep runs one cleanup pass.
func (j *Janitor) Sweep() SweepResult {
	cutoff := j.now().Add(-j.retention)

	evicted := j.ledger.EvictIdle(cutoff)
	jobs := j.jobs.EvictCreatedBefore(cutoff)
	j.ledger.PruneKeySessions()

	res := SweepResult{SessionsEvicted: len(evicted), JobsEvicted: jobs}
	telemetry.SessionsEvicted.Add(float64(res.SessionsEvicted))
	telemetry.JobsEvicted.Add(float64(res.JobsEvicted))
	if res.SessionsEvicted > 0 || res.JobsEvicted > 0 {
		j.log.Info().
			Int("sessions", res.SessionsEvicted).
			Int("jobs", res.JobsEvicted).
			Msg("expired records removed")
	}
	return res
}

// Run sweeps on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}
