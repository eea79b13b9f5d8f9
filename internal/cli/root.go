package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	if a.session == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", a.session.Account.Email)
}

// Root runs the interactive command loop. Commands needing a session are
// rejected with a hint instead of panicking on a nil reconciler.
func (a *App) Root(ctx context.Context) {
	fmt.Println("Photuris CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("photuris %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isSignedIn() {
				fmt.Println("Available commands: budget, spent, search, bills, bill, download, delete, accounts, switch, remove, login, oauth, exit")
			} else {
				fmt.Println("Available commands: login, oauth, accounts, exit")
			}

		case "login":
			_ = a.Login(ctx)
		case "oauth":
			_ = a.LoginOAuth(ctx)

		case "budget":
			if !a.requireSession() {
				continue
			}
			a.budget(ctx, firstOr(args, ""))
		case "spent":
			if !a.requireSession() {
				continue
			}
			a.spent(ctx, firstOr(args, ""))
		case "search":
			if !a.requireSession() {
				continue
			}
			if len(args) == 0 {
				fmt.Println("Usage: search <prefix>")
				continue
			}
			a.search(ctx, args[0])

		case "bills":
			if !a.requireSession() {
				continue
			}
			a.bills(ctx)
		case "bill":
			if !a.requireSession() {
				continue
			}
			if len(args) == 0 {
				fmt.Println("Usage: bill <id>")
				continue
			}
			a.bill(ctx, args[0])
		case "download":
			if !a.requireSession() {
				continue
			}
			if len(args) < 2 {
				fmt.Println("Usage: download <bill-id> <attachment-id>")
				continue
			}
			a.download(ctx, args[0], args[1])
		case "delete":
			if !a.requireSession() {
				continue
			}
			if len(args) == 0 {
				fmt.Println("Usage: delete <id>")
				continue
			}
			a.deleteBill(ctx, args[0])

		case "accounts":
			a.listAccounts(ctx)
		case "switch":
			if len(args) == 0 {
				fmt.Println("Usage: switch <id>")
				continue
			}
			a.switchAccount(ctx, args[0])
		case "remove":
			if len(args) == 0 {
				fmt.Println("Usage: remove <id>")
				continue
			}
			a.removeAccount(ctx, args[0])

		case "exit", "quit":
			fmt.Println("Bye!")
			return

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func (a *App) requireSession() bool {
	if a.isSignedIn() {
		return true
	}
	fmt.Println("Sign in first ('login' or 'oauth')")
	return false
}

func firstOr(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}
