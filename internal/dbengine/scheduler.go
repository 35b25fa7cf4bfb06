package dbengine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Scheduler dispatches any macro or backup whose period divides the current
// wall-clock minute, for one database. Grounded on the teacher's
// internal/backups/service.go scheduler() loop, simplified from cadence
// (hourly/daily/weekly/monthly) keywords to spec §4.9's plain `(wall-clock
// minute) mod N == 0` rule. Unlike a plain time.NewTicker(time.Minute), the
// first fire is aligned to the next real :00 boundary (not "one minute after
// the database happened to open"), so every database in the process — opened
// at whatever moment during bootstrap — observes the same minute boundaries
// and a period=N task fires in lockstep with any other database's period=N
// task.
type Scheduler struct {
	db       *Database
	stop     chan struct{}
	wg       sync.WaitGroup
	running  sync.Mutex
	inflight map[string]bool

	// now is overridable by tests; defaults to time.Now.
	now func() time.Time
}

func newScheduler(db *Database) *Scheduler {
	s := &Scheduler{
		db:       db,
		stop:     make(chan struct{}),
		inflight: make(map[string]bool),
		now:      time.Now,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	timer := time.NewTimer(untilNextMinuteBoundary(s.now()))
	defer timer.Stop()
	for {
		select {
		case <-s.stop:
			return
		case fired := <-timer.C:
			s.tick(fired)
			timer.Reset(untilNextMinuteBoundary(s.now()))
		}
	}
}

// untilNextMinuteBoundary returns the delay from now to the next wall-clock
// :00 boundary (always positive, never zero or negative, so the timer always
// actually waits).
func untilNextMinuteBoundary(now time.Time) time.Duration {
	next := now.Truncate(time.Minute).Add(time.Minute)
	if d := next.Sub(now); d > 0 {
		return d
	}
	return time.Minute
}

// tick fires every macro and the backup whose period divides the current
// wall-clock minute-of-hour, skipping any that is still running from a prior
// tick (re-entrancy suppression — spec §4.9 requires at most one instance of
// a given periodic task in flight at a time; a slow macro could still be
// mid-flight when its own next period arrives).
func (s *Scheduler) tick(now time.Time) {
	ctx := context.Background()
	minute := now.Minute()

	for _, m := range s.db.Macros {
		if m.Execution.Period == 0 || minute%int(m.Execution.Period) != 0 {
			continue
		}
		s.runOnce("macro:"+m.ID, func() {
			if err := s.db.runMacro(ctx, m); err != nil {
				log.Error().Str("db", s.db.Name).Str("macro", m.ID).Err(err).Msg("scheduled macro failed")
			}
		})
	}

	if b := s.db.Backup; b != nil && b.Period() > 0 {
		periodMinutes := int(b.Period() / time.Minute)
		if periodMinutes > 0 && minute%periodMinutes == 0 {
			s.runOnce("backup", func() {
				if _, err := b.Run(ctx, s.db); err != nil {
					log.Error().Str("db", s.db.Name).Err(err).Msg("scheduled backup failed")
				}
			})
		}
	}
}

func (s *Scheduler) runOnce(key string, fn func()) {
	s.running.Lock()
	if s.inflight[key] {
		s.running.Unlock()
		log.Warn().Str("db", s.db.Name).Str("job", key).Msg("skipping tick, previous run still in flight")
		return
	}
	s.inflight[key] = true
	s.running.Unlock()

	defer func() {
		s.running.Lock()
		delete(s.inflight, key)
		s.running.Unlock()
	}()

	fn()
}

// Stop halts the scheduler goroutine and waits for any in-flight tick to
// finish; tick runs its jobs synchronously, so this includes those jobs.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}
