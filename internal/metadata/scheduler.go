package metadata

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// ReloadScheduler periodically reloads the registry on a cron schedule.
// A failed reload keeps the previous snapshot.
type ReloadScheduler struct {
	db   Querier
	reg  *Registry
	cron *cron.Cron
}

func NewReloadScheduler(db Querier, reg *Registry) *ReloadScheduler {
	return &ReloadScheduler{db: db, reg: reg, cron: cron.New()}
}

// Start registers the reload job. An empty spec disables scheduling.
func (s *ReloadScheduler) Start(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.reload); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("Metadata reload scheduled (%s)", spec)
	return nil
}

// Stop waits for a running reload to finish.
func (s *ReloadScheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *ReloadScheduler) reload() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := Reload(ctx, s.db, s.reg); err != nil {
		log.Printf("ERROR: scheduled metadata reload: %v", err)
	}
}
