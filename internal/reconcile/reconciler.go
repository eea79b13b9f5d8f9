// Package reconcile keeps the local cache consistent with the remote source
// of truth. A refresh replaces the cached records of one entity type with the
// remote listing (replace, not merge), then recomputes whatever aggregate the
// caller asked for from the cache. Failures never escape the refresh
// boundary: the caller always gets a best-effort value, possibly stale,
// possibly zero, and the failure text travels through a status side channel.
package reconcile

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/datex"
	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/store"
	"github.com/hisname/photuris/internal/tasks"
)

// Reconciler reconciles one account's cache against the remote API.
type Reconciler struct {
	client api.Client
	cache  *store.Cache
	log    logging.Logger

	loading *tasks.Flag
	status  *tasks.Value[string]

	retry *RetryScheduler

	// now is a test seam for calendar-month bounds.
	now func() time.Time
}

// New builds a Reconciler over the given cache and API client. retry may be
// nil, in which case failed server-side deletes are not retried.
func New(client api.Client, cache *store.Cache, retry *RetryScheduler, log logging.Logger) *Reconciler {
	return &Reconciler{
		client:  client,
		cache:   cache,
		log:     log,
		loading: tasks.NewFlag(),
		status:  tasks.NewValue[string](),
		retry:   retry,
		now:     time.Now,
	}
}

// Loading exposes the loading flag. Only its final false is authoritative.
func (r *Reconciler) Loading() *tasks.Flag {
	return r.loading
}

// Status exposes the user-facing failure messages. Latest value wins.
func (r *Reconciler) Status() *tasks.Value[string] {
	return r.status
}

// monthBounds returns the current calendar month as stored-day strings.
func (r *Reconciler) monthBounds() (start, end string) {
	now := r.now()
	return datex.StartOfMonth(now).Format("2006-01-02"), datex.EndOfMonth(now).Format("2006-01-02")
}

// MonthlyBudgeted refreshes the budget cache from the remote and returns the
// amount budgeted for the current month in the given currency. On any
// failure the cache is left untouched and the cached aggregate is returned
// instead; the failure message is published on Status.
func (r *Reconciler) MonthlyBudgeted(ctx context.Context, currencyCode string) decimal.Decimal {
	r.loading.Begin()
	defer r.loading.End()

	records, err := fetchAll(ctx, r.client.ListBudgets)
	if err != nil {
		apiErr := api.AsError(err)
		r.log.Warn(ctx, "budget refresh failed", "kind", int(apiErr.Kind), "status", apiErr.StatusCode)
		r.status.Publish(apiErr.Error())
		return r.cachedBudgeted(ctx, currencyCode)
	}

	// All pages are in hand: replace the cache in one transaction so a crash
	// mid-merge cannot leave it half purged. The context is detached because
	// an abandoned caller must not abort a store mutation already underway.
	mergeCtx := context.WithoutCancel(ctx)
	err = dbx.WithTx(mergeCtx, r.cache.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		budgets := store.NewSQLiteBudgetRepository(tx)
		if err := budgets.DeleteAll(ctx); err != nil {
			return err
		}
		for _, b := range records {
			if err := budgets.Upsert(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.log.Error(mergeCtx, "budget merge failed", "err", err)
		r.status.Publish(err.Error())
		return r.cachedBudgeted(ctx, currencyCode)
	}
	r.log.Debug(ctx, "budgets refreshed", "records", len(records))

	return r.cachedBudgeted(ctx, currencyCode)
}

// cachedBudgeted computes the monthly aggregate from whatever the cache
// currently holds. Zero when nothing matches or the store itself fails.
func (r *Reconciler) cachedBudgeted(ctx context.Context, currencyCode string) decimal.Decimal {
	start, end := r.monthBounds()
	total, found, err := r.cache.Budgets.BudgetedTotal(ctx, start, end, currencyCode)
	if err != nil {
		r.log.Error(ctx, "budget aggregate failed", "err", err)
		r.status.Publish(err.Error())
		return decimal.Zero
	}
	if !found {
		return decimal.Zero
	}
	return total
}

// SpentThisMonth sums this month's transactions in the given currency from
// the cache only; the network is never touched.
func (r *Reconciler) SpentThisMonth(ctx context.Context, currencyCode string) decimal.Decimal {
	start, end := r.monthBounds()
	total, err := r.cache.Transactions.SpentTotal(ctx, currencyCode, start, end)
	if err != nil {
		r.log.Error(ctx, "spent aggregate failed", "err", err)
		r.status.Publish(err.Error())
		return decimal.Zero
	}
	return total
}

// SearchBudgets is a cache-only prefix search (trailing wildcard).
func (r *Reconciler) SearchBudgets(ctx context.Context, namePrefix string) ([]models.Budget, error) {
	return r.cache.Budgets.SearchByName(ctx, namePrefix)
}

// RefreshBills replaces the bill cache with the remote listing. Unlike the
// aggregate refreshes, the error is returned: callers decide how to present
// it. A failure leaves the cache untouched.
func (r *Reconciler) RefreshBills(ctx context.Context) error {
	r.loading.Begin()
	defer r.loading.End()

	records, err := fetchAll(ctx, r.client.ListBills)
	if err != nil {
		r.status.Publish(api.AsError(err).Error())
		return err
	}

	mergeCtx := context.WithoutCancel(ctx)
	err = dbx.WithTx(mergeCtx, r.cache.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		bills := store.NewSQLiteBillRepository(tx)
		payments := store.NewSQLiteBillPaymentRepository(tx)
		if err := bills.DeleteAll(ctx); err != nil {
			return err
		}
		if err := payments.DeleteAll(ctx); err != nil {
			return err
		}
		for _, b := range records {
			if err := bills.Upsert(ctx, b); err != nil {
				return err
			}
			for _, p := range b.PaidDates {
				if err := payments.Upsert(ctx, p); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		r.status.Publish(err.Error())
		return err
	}
	r.log.Debug(ctx, "bills refreshed", "records", len(records))
	return nil
}

// BillsDueToday counts bills due today that have no payment recorded today.
func (r *Reconciler) BillsDueToday(ctx context.Context) (int, error) {
	today := datex.Today(r.now()).Format("2006-01-02")

	due, err := r.cache.Bills.DueOn(ctx, today)
	if err != nil {
		return 0, err
	}
	paid, err := r.cache.BillPayments.PaidBillIDs(ctx, today, today)
	if err != nil {
		return 0, err
	}

	paidSet := make(map[int64]struct{}, len(paid))
	for _, id := range paid {
		paidSet[id] = struct{}{}
	}
	count := 0
	for _, b := range due {
		if _, ok := paidSet[b.ID]; !ok {
			count++
		}
	}
	return count, nil
}

// DeleteBill attempts the server-side delete first. Only a confirmed delete
// removes the local record; a transient failure keeps it and schedules a
// background retry; an authorisation failure keeps it without retrying.
func (r *Reconciler) DeleteBill(ctx context.Context, id int64) bool {
	r.loading.Begin()
	defer r.loading.End()

	status, err := r.client.DeleteBill(ctx, id)
	switch status {
	case api.DeleteSucceeded:
		if err := r.cache.Bills.DeleteByID(context.WithoutCancel(ctx), id); err != nil {
			r.log.Error(ctx, "local bill delete failed", "bill", id, "err", err)
			r.status.Publish(err.Error())
		}
		return true
	case api.DeleteUnauthorised:
		r.status.Publish(api.AsError(err).Error())
		return false
	default:
		r.status.Publish(api.AsError(err).Error())
		if r.retry != nil {
			r.retry.ScheduleBillDelete(id)
		}
		return false
	}
}

// fetchAll retrieves page 1, then every remaining page concurrently, and
// returns the union only once all pages have arrived. Any page failure fails
// the whole fetch so the caller never merges a partial listing.
func fetchAll[T any](ctx context.Context, list func(context.Context, int) (api.Page[T], error)) ([]T, error) {
	first, err := list(ctx, 1)
	if err != nil {
		return nil, err
	}
	records := first.Records
	if first.TotalPages <= 1 || first.CurrentPage == first.TotalPages {
		return records, nil
	}

	pages := make([][]T, first.TotalPages+1)
	g, gctx := errgroup.WithContext(ctx)
	for page := 2; page <= first.TotalPages; page++ {
		page := page
		g.Go(func() error {
			p, err := list(gctx, page)
			if err != nil {
				return err
			}
			pages[page] = p.Records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, p := range pages {
		records = append(records, p...)
	}
	return records, nil
}
