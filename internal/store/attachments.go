package store

import (
	"context"
	"fmt"

	"github.com/hisname/photuris/internal/dbx"
	"github.com/hisname/photuris/internal/models"
)

// AttachmentRepository caches attachment metadata per owning record.
type AttachmentRepository interface {
	Upsert(ctx context.Context, a models.Attachment) error
	DeleteAll(ctx context.Context) error
	ByOwner(ctx context.Context, ownerID int64) ([]models.Attachment, error)
}

type SQLiteAttachmentRepository struct {
	db dbx.DBTX
}

func NewSQLiteAttachmentRepository(db dbx.DBTX) *SQLiteAttachmentRepository {
	return &SQLiteAttachmentRepository{db: db}
}

func (r *SQLiteAttachmentRepository) Upsert(ctx context.Context, a models.Attachment) error {
	query := `INSERT INTO attachments (id, owner_id, filename, title, download_uri)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET owner_id = excluded.owner_id,
			filename = excluded.filename,
			title = excluded.title,
			download_uri = excluded.download_uri
	`
	if _, err := r.db.ExecContext(ctx, query, a.ID, a.OwnerID, a.Filename, a.Title, a.DownloadURI); err != nil {
		return fmt.Errorf("failed to upsert attachment: %w", err)
	}
	return nil
}

func (r *SQLiteAttachmentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM attachments`); err != nil {
		return fmt.Errorf("failed to delete attachments: %w", err)
	}
	return nil
}

func (r *SQLiteAttachmentRepository) ByOwner(ctx context.Context, ownerID int64) ([]models.Attachment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, filename, title, download_uri FROM attachments WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var result []models.Attachment
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Filename, &a.Title, &a.DownloadURI); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
