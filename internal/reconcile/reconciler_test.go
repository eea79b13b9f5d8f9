package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/hisname/photuris/internal/api"
	"github.com/hisname/photuris/internal/logging"
	"github.com/hisname/photuris/internal/models"
	"github.com/hisname/photuris/internal/store"
	"github.com/hisname/photuris/internal/tasks"
)

// fakeClient implements api.Client with pluggable behaviour per method.
type fakeClient struct {
	listBudgets func(ctx context.Context, page int) (api.Page[models.Budget], error)
	listBills   func(ctx context.Context, page int) (api.Page[models.Bill], error)
	deleteBill  func(ctx context.Context, id int64) (api.DeleteStatus, error)
}

func (f *fakeClient) ListBudgets(ctx context.Context, page int) (api.Page[models.Budget], error) {
	return f.listBudgets(ctx, page)
}

func (f *fakeClient) ListBills(ctx context.Context, page int) (api.Page[models.Bill], error) {
	return f.listBills(ctx, page)
}

func (f *fakeClient) DeleteBill(ctx context.Context, id int64) (api.DeleteStatus, error) {
	return f.deleteBill(ctx, id)
}

func (f *fakeClient) GetBill(context.Context, int64) (models.Bill, error) {
	return models.Bill{}, errors.New("not implemented")
}

func (f *fakeClient) ListAttachments(context.Context, int64) ([]models.Attachment, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeClient) Download(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeClient) CurrentUser(context.Context) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeClient) ExchangeCode(context.Context, string, string, string, string) (api.TokenGrant, error) {
	return api.TokenGrant{}, errors.New("not implemented")
}

func (f *fakeClient) Close() error { return nil }

var memoryDBSeq atomic.Int64

func setupCache(t *testing.T) *store.Cache {
	t.Helper()
	dsn := fmt.Sprintf("file:reconcile_test_%d?mode=memory&cache=shared", memoryDBSeq.Add(1))
	cache, err := store.OpenCache(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

// fixedNow pins the calendar month for aggregates.
var fixedNow = time.Date(2026, time.August, 15, 12, 0, 0, 0, time.UTC)

func newReconciler(t *testing.T, client api.Client, cache *store.Cache, retry *RetryScheduler) *Reconciler {
	t.Helper()
	r := New(client, cache, retry, logging.NewNopLogger())
	r.now = func() time.Time { return fixedNow }
	return r
}

func monthBudget(id int64, name, amount string) models.Budget {
	return models.Budget{
		ID:           id,
		Name:         name,
		Active:       true,
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "EUR",
		Start:        time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC),
	}
}

func budgetPage(total, current int, records ...models.Budget) api.Page[models.Budget] {
	return api.Page[models.Budget]{Records: records, CurrentPage: current, TotalPages: total}
}

func TestMonthlyBudgeted_UnionAcrossAllPages(t *testing.T) {
	cache := setupCache(t)

	var fetched atomic.Int32
	client := &fakeClient{
		listBudgets: func(ctx context.Context, page int) (api.Page[models.Budget], error) {
			if page == 3 {
				// The slowest page must still be merged.
				time.Sleep(50 * time.Millisecond)
			}
			fetched.Add(1)
			switch page {
			case 1:
				return budgetPage(3, 1, monthBudget(1, "Groceries", "100.10")), nil
			case 2:
				return budgetPage(3, 2, monthBudget(2, "Rent", "850")), nil
			default:
				return budgetPage(3, 3, monthBudget(3, "Transport", "49.90")), nil
			}
		},
	}
	r := newReconciler(t, client, cache, nil)

	total := r.MonthlyBudgeted(context.Background(), "EUR")

	assert.Equal(t, int32(3), fetched.Load())
	assert.True(t, decimal.RequireFromString("1000").Equal(total), "got %s", total)

	// The merge replaced the cache with all three records.
	found, err := cache.Budgets.SearchByName(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestMonthlyBudgeted_PageFailureFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.Budgets.Upsert(ctx, monthBudget(9, "Stale", "40")))

	client := &fakeClient{
		listBudgets: func(ctx context.Context, page int) (api.Page[models.Budget], error) {
			if page == 1 {
				return budgetPage(2, 1, monthBudget(1, "Fresh", "999")), nil
			}
			return api.Page[models.Budget]{}, &api.Error{Kind: api.KindServer, StatusCode: 500, Message: "boom"}
		},
	}
	r := newReconciler(t, client, cache, nil)

	total := r.MonthlyBudgeted(ctx, "EUR")

	// Cache untouched: page 1 data was never merged, aggregate is the stale value.
	assert.True(t, decimal.RequireFromString("40").Equal(total), "got %s", total)
	found, err := cache.Budgets.SearchByName(ctx, "")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Stale", found[0].Name)

	msg, ok := r.Status().Get()
	require.True(t, ok)
	assert.NotEmpty(t, msg)
}

func TestMonthlyBudgeted_EmptyRemoteYieldsZero(t *testing.T) {
	cache := setupCache(t)
	client := &fakeClient{
		listBudgets: func(ctx context.Context, page int) (api.Page[models.Budget], error) {
			return budgetPage(1, 1), nil
		},
	}
	r := newReconciler(t, client, cache, nil)

	total := r.MonthlyBudgeted(context.Background(), "EUR")
	assert.True(t, total.IsZero())
}

func TestMonthlyBudgeted_CurrencyAndMonthFiltered(t *testing.T) {
	cache := setupCache(t)

	otherMonth := monthBudget(3, "July", "500")
	otherMonth.Start = time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)
	otherMonth.End = time.Date(2026, time.July, 31, 0, 0, 0, 0, time.UTC)
	otherCurrency := monthBudget(4, "Dollars", "77")
	otherCurrency.CurrencyCode = "USD"

	client := &fakeClient{
		listBudgets: func(ctx context.Context, page int) (api.Page[models.Budget], error) {
			return budgetPage(1, 1, monthBudget(1, "Groceries", "100"), otherMonth, otherCurrency), nil
		},
	}
	r := newReconciler(t, client, cache, nil)

	total := r.MonthlyBudgeted(context.Background(), "EUR")
	assert.True(t, decimal.RequireFromString("100").Equal(total), "got %s", total)
}

func TestSpentThisMonth_LocalOnly(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)

	seed := []models.Transaction{
		{ID: 1, Description: "coffee", Amount: decimal.RequireFromString("3.50"), CurrencyCode: "EUR",
			Date: time.Date(2026, time.August, 3, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Description: "rent", Amount: decimal.RequireFromString("850"), CurrencyCode: "EUR",
			Date: time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Description: "last month", Amount: decimal.RequireFromString("12"), CurrencyCode: "EUR",
			Date: time.Date(2026, time.July, 30, 0, 0, 0, 0, time.UTC)},
		{ID: 4, Description: "dollars", Amount: decimal.RequireFromString("99"), CurrencyCode: "USD",
			Date: time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tr := range seed {
		require.NoError(t, cache.Transactions.Upsert(ctx, tr))
	}

	// The client must never be called.
	r := newReconciler(t, &fakeClient{}, cache, nil)

	total := r.SpentThisMonth(ctx, "EUR")
	assert.True(t, decimal.RequireFromString("853.50").Equal(total), "got %s", total)
}

func dueBill(id int64, name string, due time.Time) models.Bill {
	return models.Bill{
		ID:           id,
		Name:         name,
		Active:       true,
		AmountMin:    decimal.RequireFromString("10"),
		AmountMax:    decimal.RequireFromString("20"),
		CurrencyCode: "EUR",
		NextDueDate:  due,
		RepeatFreq:   "monthly",
	}
}

func TestBillsDueToday_ExcludesPaid(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)

	today := time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(1, "Electricity", today)))
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(2, "Internet", today)))
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(3, "Insurance", today.AddDate(0, 0, 5))))
	require.NoError(t, cache.BillPayments.Upsert(ctx, models.BillPayment{ID: 1, BillID: 2, Date: today}))

	r := newReconciler(t, &fakeClient{}, cache, nil)

	count, err := r.BillsDueToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRefreshBills_ReplacesBillsAndPayments(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.BillPayments.Upsert(ctx, models.BillPayment{ID: 99, BillID: 99, Date: fixedNow}))

	paid := dueBill(1, "Electricity", fixedNow)
	paid.PaidDates = []models.BillPayment{{ID: 501, BillID: 1, Date: fixedNow}}
	unpaid := dueBill(2, "Internet", fixedNow)

	client := &fakeClient{
		listBills: func(ctx context.Context, page int) (api.Page[models.Bill], error) {
			return api.Page[models.Bill]{Records: []models.Bill{paid, unpaid}, CurrentPage: 1, TotalPages: 1}, nil
		},
	}
	r := newReconciler(t, client, cache, nil)

	require.NoError(t, r.RefreshBills(ctx))

	count, err := r.BillsDueToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	ids, err := cache.BillPayments.PaidBillIDs(ctx, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestRefreshBills_FailureReturnsErrorAndKeepsCache(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	stale := dueBill(7, "Stale", time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, cache.Bills.Upsert(ctx, stale))

	client := &fakeClient{
		listBills: func(ctx context.Context, page int) (api.Page[models.Bill], error) {
			return api.Page[models.Bill]{}, &api.Error{Kind: api.KindUnreachable, Message: "no route"}
		},
	}
	r := newReconciler(t, client, cache, nil)

	err := r.RefreshBills(ctx)
	require.Error(t, err)

	kept, err := cache.Bills.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Stale", kept.Name)
}

func TestDeleteBill_SucceededRemovesLocalRecord(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(5, "Gym", fixedNow)))

	client := &fakeClient{
		deleteBill: func(ctx context.Context, id int64) (api.DeleteStatus, error) {
			return api.DeleteSucceeded, nil
		},
	}
	r := newReconciler(t, client, cache, nil)

	assert.True(t, r.DeleteBill(ctx, 5))
	_, err := cache.Bills.GetByID(ctx, 5)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteBill_UnauthorisedKeepsRecordWithoutRetry(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(5, "Gym", fixedNow)))

	var retryCalls atomic.Int32
	retryClient := &fakeClient{
		deleteBill: func(ctx context.Context, id int64) (api.DeleteStatus, error) {
			retryCalls.Add(1)
			return api.DeleteSucceeded, nil
		},
	}
	coord := tasks.NewCoordinator(1, logging.NewNopLogger())
	t.Cleanup(coord.Close)
	sched := NewRetryScheduler(coord, retryClient, cache.Bills, logging.NewNopLogger())

	client := &fakeClient{
		deleteBill: func(ctx context.Context, id int64) (api.DeleteStatus, error) {
			return api.DeleteUnauthorised, &api.Error{Kind: api.KindServer, StatusCode: 401, Message: "unauthorised"}
		},
	}
	r := newReconciler(t, client, cache, sched)

	assert.False(t, r.DeleteBill(ctx, 5))

	msg, ok := r.Status().Get()
	require.True(t, ok)
	assert.Contains(t, msg, "unauthorised")

	_, err := cache.Bills.GetByID(ctx, 5)
	assert.NoError(t, err)
	assert.Equal(t, int32(0), retryCalls.Load())
}

func TestDeleteBill_TransientFailureSchedulesRetry(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.Bills.Upsert(ctx, dueBill(5, "Gym", fixedNow)))

	// The background retry succeeds on its first attempt.
	retryClient := &fakeClient{
		deleteBill: func(ctx context.Context, id int64) (api.DeleteStatus, error) {
			return api.DeleteSucceeded, nil
		},
	}
	coord := tasks.NewCoordinator(1, logging.NewNopLogger())
	t.Cleanup(coord.Close)
	sched := NewRetryScheduler(coord, retryClient, cache.Bills, logging.NewNopLogger())
	sched.baseDelay = time.Millisecond

	client := &fakeClient{
		deleteBill: func(ctx context.Context, id int64) (api.DeleteStatus, error) {
			return api.DeleteFailed, &api.Error{Kind: api.KindUnreachable, Message: "timeout"}
		},
	}
	r := newReconciler(t, client, cache, sched)

	assert.False(t, r.DeleteBill(ctx, 5))

	// The record stays until the background retry confirms the delete.
	require.Eventually(t, func() bool {
		_, err := cache.Bills.GetByID(context.Background(), 5)
		return errors.Is(err, store.ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSearchBudgets_PrefixOnly(t *testing.T) {
	ctx := context.Background()
	cache := setupCache(t)
	require.NoError(t, cache.Budgets.Upsert(ctx, monthBudget(1, "Gardening", "10")))
	require.NoError(t, cache.Budgets.Upsert(ctx, monthBudget(2, "Groceries", "20")))

	r := newReconciler(t, &fakeClient{}, cache, nil)

	found, err := r.SearchBudgets(ctx, "Gar")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Gardening", found[0].Name)
}
