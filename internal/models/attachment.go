package models

// Attachment is a file the server holds for another record (bill, transaction).
// Only metadata is cached locally; the payload is fetched on demand via
// DownloadURI.
type Attachment struct {
	ID int64

	// OwnerID is the record the attachment belongs to.
	OwnerID int64

	Filename    string
	Title       string
	DownloadURI string
}
