package instrument

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"reader-backend/internal/store"
)

// CleanupOldEvents deletes events older than retentionDays and returns how
// many were removed.
func CleanupOldEvents(ctx context.Context, s *store.Store, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	pb := s.Dialect.NewParamBuilder()
	where := s.Dialect.IntervalDeleteExpr("created_at", pb, strconv.Itoa(retentionDays))
	n, err := store.Exec(ctx, s.DB, "DELETE FROM _events WHERE "+where, pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("event cleanup: %w", err)
	}
	return n, nil
}

// ScheduleCleanup adds the retention job to c.
func ScheduleCleanup(c *cron.Cron, spec string, s *store.Store, retentionDays int) error {
	if spec == "" || retentionDays <= 0 {
		return nil
	}
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := CleanupOldEvents(ctx, s, retentionDays)
		if err != nil {
			log.Printf("ERROR: %v", err)
			return
		}
		if n > 0 {
			log.Printf("Event cleanup: deleted %d old events", n)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule event cleanup %q: %w", spec, err)
	}
	return nil
}
