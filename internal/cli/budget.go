package cli

import (
	"context"
	"fmt"
)

// currencyOr resolves the currency for aggregate commands: an explicit
// argument wins, then the account's default, then EUR.
func (a *App) currencyOr(arg string) string {
	if arg != "" {
		return arg
	}
	if a.session != nil && a.session.Prefs.DefaultCurrency != "" {
		return a.session.Prefs.DefaultCurrency
	}
	return "EUR"
}

// budget refreshes the budget cache and prints this month's budgeted amount.
func (a *App) budget(ctx context.Context, currencyArg string) {
	currency := a.currencyOr(currencyArg)
	total := a.reconciler.MonthlyBudgeted(ctx, currency)
	fmt.Printf("Budgeted this month: %s %s\n", total.StringFixed(2), currency)
	a.reportStatus()
}

// spent prints this month's spending from the cache only.
func (a *App) spent(ctx context.Context, currencyArg string) {
	currency := a.currencyOr(currencyArg)
	total := a.reconciler.SpentThisMonth(ctx, currency)
	fmt.Printf("Spent this month: %s %s\n", total.StringFixed(2), currency)
}

// search lists cached budgets whose name starts with the given prefix.
func (a *App) search(ctx context.Context, prefix string) {
	budgets, err := a.reconciler.SearchBudgets(ctx, prefix)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if len(budgets) == 0 {
		fmt.Println("No budgets found")
		return
	}
	for _, b := range budgets {
		fmt.Printf("%d  %-20s %s %s  (%s to %s)\n",
			b.ID, b.Name, b.Amount.StringFixed(2), b.CurrencyCode,
			b.Start.Format("2006-01-02"), b.End.Format("2006-01-02"))
	}
}
