package service

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

const (
	schedulerCheckInterval = time.Minute
	scheduledSyncWeekday   = time.Monday
	scheduledSyncHour      = 2
)

// SyncScheduler runs the weekly bill sync in the background. The loop wakes
// once a minute and fires when the Monday 02:00 slot arrives.
type SyncScheduler struct {
	ingestor      *Ingestor
	checkInterval time.Duration
	logger        *log.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun time.Time
}

// NewSyncScheduler creates a new SyncScheduler
func NewSyncScheduler(ingestor *Ingestor) *SyncScheduler {
	return &SyncScheduler{
		ingestor:      ingestor,
		checkInterval: schedulerCheckInterval,
		logger:        log.New(os.Stdout, "[scheduler] ", log.LstdFlags),
	}
}

// Start launches the background loop. Starting a running scheduler is a no-op.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.running = true
	s.wg.Add(1)

	go s.run(ctx, s.stop)

	s.logger.Printf("Started, syncing every %s at %02d:00", scheduledSyncWeekday, scheduledSyncHour)
}

// Stop halts the background loop, waiting for any in-flight sync to wind
// down. Stopping a stopped scheduler is a no-op.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Println("Stopped")
}

// Running reports whether the scheduler loop is active
func (s *SyncScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *SyncScheduler) run(ctx context.Context, stop chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkAndSync(ctx)
		case <-stop:
			return
		}
	}
}

// checkAndSync fires the sync when the weekly slot arrives, at most once per day
func (s *SyncScheduler) checkAndSync(ctx context.Context) {
	now := time.Now()
	if now.Weekday() != scheduledSyncWeekday || now.Hour() != scheduledSyncHour {
		return
	}

	s.mu.Lock()
	if sameDay(s.lastRun, now) {
		s.mu.Unlock()
		return
	}
	s.lastRun = now
	s.mu.Unlock()

	s.logger.Println("Starting scheduled bill sync")
	stats, err := s.ingestor.IngestSession(ctx, "", model.TriggerScheduled)
	if err != nil {
		s.logger.Printf("Scheduled sync failed: %v", err)
		return
	}
	s.logger.Printf("Scheduled sync complete: %d processed, %d created, %d updated, %d errors",
		stats.Processed, stats.Created, stats.Updated, stats.Errors)
}

// RunNow triggers an immediate sync of the current session regardless of the
// schedule
func (s *SyncScheduler) RunNow(ctx context.Context) (*SyncStats, error) {
	return s.ingestor.IngestSession(ctx, "", model.TriggerManual)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
