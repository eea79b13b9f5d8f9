package cli

import (
	"context"
	"fmt"
	"strconv"
)

// listAccounts prints every registered account. The active one is marked.
func (a *App) listAccounts(ctx context.Context) {
	accounts, err := a.registry.Accounts.All(ctx)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts registered")
		return
	}
	for _, acc := range accounts {
		marker := " "
		if acc.Active {
			marker = "*"
		}
		fmt.Printf("%s %d  %s  %s\n", marker, acc.ID, acc.Email, acc.Host)
	}
}

// switchAccount activates another registered account and reopens the session.
func (a *App) switchAccount(ctx context.Context, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: switch <id>")
		return
	}
	accounts, err := a.registry.Accounts.All(ctx)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	for _, acc := range accounts {
		if acc.ID != id {
			continue
		}
		if err := a.registry.Accounts.SetActive(ctx, acc.Email, acc.Host); err != nil {
			fmt.Println(err.Error())
			return
		}
		a.closeSession()
		if err := a.openActiveSession(ctx); err != nil {
			fmt.Println(err.Error())
			return
		}
		fmt.Printf("Switched to %s\n", acc.Email)
		return
	}
	fmt.Println("No such account")
}

// removeAccount deletes an account and all of its local state. When the
// active account goes away, the session follows the registry's promotion.
func (a *App) removeAccount(ctx context.Context, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: remove <id>")
		return
	}
	accounts, err := a.registry.Accounts.All(ctx)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	for _, acc := range accounts {
		if acc.ID != id {
			continue
		}
		wasActive := acc.Active
		if err := a.auth.RemoveAccount(ctx, acc); err != nil {
			fmt.Println(err.Error())
			return
		}
		if wasActive {
			a.closeSession()
			if err := a.openActiveSession(ctx); err != nil {
				fmt.Println(err.Error())
				return
			}
		}
		fmt.Printf("Removed %s\n", acc.Email)
		return
	}
	fmt.Println("No such account")
}
