package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
)

// bills refreshes the bill cache and reports how many bills fall due today.
func (a *App) bills(ctx context.Context) {
	if err := a.reconciler.RefreshBills(ctx); err != nil {
		a.reportStatus()
	}
	count, err := a.reconciler.BillsDueToday(ctx)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Printf("%d bill(s) due today\n", count)
}

// bill prints the cached details of one bill and its attachments.
func (a *App) bill(ctx context.Context, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: bill <id>")
		return
	}

	b, err := a.session.Cache.Bills.GetByID(ctx, id)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Printf("%s  %s-%s %s  due %s (%s)\n",
		b.Name, b.AmountMin.StringFixed(2), b.AmountMax.StringFixed(2), b.CurrencyCode,
		b.NextDueDate.Format("2006-01-02"), b.RepeatFreq)

	attachments, err := a.session.API.ListAttachments(ctx, id)
	if err != nil {
		// Fall back to whatever was cached on an earlier lookup.
		attachments, err = a.session.Cache.Attachments.ByOwner(ctx, id)
		if err != nil {
			fmt.Println(err.Error())
			return
		}
	} else {
		for _, at := range attachments {
			if err := a.session.Cache.Attachments.Upsert(ctx, at); err != nil {
				a.log.Warn(ctx, "attachment cache update failed", "bill", id, "err", err)
				break
			}
		}
	}
	for _, at := range attachments {
		fmt.Printf("  attachment %d: %s\n", at.ID, at.Filename)
	}
}

// download fetches one of a bill's attachments into the files directory.
func (a *App) download(ctx context.Context, billArg, attachmentArg string) {
	billID, err := strconv.ParseInt(billArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: download <bill-id> <attachment-id>")
		return
	}
	attachmentID, err := strconv.ParseInt(attachmentArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: download <bill-id> <attachment-id>")
		return
	}

	attachments, err := a.session.API.ListAttachments(ctx, billID)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	for _, at := range attachments {
		if at.ID != attachmentID {
			continue
		}
		dst := filepath.Join(a.layout.FilesDir(), at.Filename)
		if err := a.session.API.Download(ctx, at.DownloadURI, dst); err != nil {
			fmt.Println(err.Error())
			return
		}
		fmt.Printf("Saved %s\n", dst)
		return
	}
	fmt.Println("No such attachment")
}

// deleteBill asks the server to delete a bill. A transient failure keeps the
// cached record and retries in the background.
func (a *App) deleteBill(ctx context.Context, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		fmt.Println("Usage: delete <id>")
		return
	}
	if a.reconciler.DeleteBill(ctx, id) {
		fmt.Println("Deleted")
		return
	}
	a.reportStatus()
}
