package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"tally/internal/log"
)

// Snapshotter periodically writes the database to its snapshot file.
// It is independent of request handling; shutdown stops the schedule
// before the final synchronous save.
type Snapshotter struct {
	cron     *cron.Cron
	store    *Store
	interval time.Duration
	log      *log.Logger
}

func NewSnapshotter(store *Store, interval time.Duration, logger *log.Logger) (*Snapshotter, error) {
	s := &Snapshotter{
		cron:     cron.New(),
		store:    store,
		interval: interval,
		log:      logger.WithComponent(log.ComponentSnapshot),
	}

	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		s.store.SaveBestEffort(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("schedule snapshot save: %w", err)
	}

	return s, nil
}

// Start begins the periodic save schedule.
func (s *Snapshotter) Start() {
	s.cron.Start()
	s.log.Info("Auto-save started", "interval", s.interval.String())
}

// Stop cancels the schedule and waits for an in-flight save to finish.
func (s *Snapshotter) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Auto-save stopped")
}
