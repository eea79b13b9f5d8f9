package reconcile

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/store"
	"github.com/hisname/photuris/internal/tasks"
)

// RetryScheduler re-attempts server-side deletes that failed transiently.
// Work runs on the shared coordinator pool with exponential backoff; an
// unauthorised response stops the retries immediately.
type RetryScheduler struct {
	coord  *tasks.Coordinator
	client api.Client
	bills  store.BillRepository
	log    logging.Logger

	baseDelay  time.Duration
	maxRetries uint64
}

func NewRetryScheduler(coord *tasks.Coordinator, client api.Client, bills store.BillRepository, log logging.Logger) *RetryScheduler {
	return &RetryScheduler{
		coord:      coord,
		client:     client,
		bills:      bills,
		log:        log,
		baseDelay:  time.Second,
		maxRetries: 5,
	}
}

// ScheduleBillDelete queues a background retry of the server-side delete for
// the given bill. The local record is removed only once the server confirms.
func (s *RetryScheduler) ScheduleBillDelete(id int64) {
	err := s.coord.Submit(func(ctx context.Context) {
		backoff := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.baseDelay))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			status, err := s.client.DeleteBill(ctx, id)
			switch status {
			case api.DeleteSucceeded:
				return s.bills.DeleteByID(ctx, id)
			case api.DeleteUnauthorised:
				s.log.Warn(ctx, "bill delete unauthorised, giving up", "bill", id)
				return nil
			default:
				return retry.RetryableError(err)
			}
		})
		if err != nil {
			s.log.Warn(ctx, "bill delete retries exhausted", "bill", id, "err", err)
		}
	})
	if err != nil {
		s.log.Warn(context.Background(), "retry not scheduled", "bill", id, "err", err)
	}
}
