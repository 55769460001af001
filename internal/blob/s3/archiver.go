package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vaultline/artkey/internal/service"
)

// Archiver writes one JSON object per settled auction, keyed by epoch so a
// retried settlement overwrites its own record instead of duplicating it.
type Archiver struct {
	uploader *manager.Uploader
	bucket   string
	logger   *slog.Logger
}

var _ service.Archiver = (*Archiver)(nil)

// NewArchiver creates an Archiver on top of an existing Client. The upload
// manager splits oversized records into parts and retries each part, so a
// long bid history uploads the same way a small one does.
func NewArchiver(c *Client, logger *slog.Logger) *Archiver {
	return &Archiver{
		uploader: manager.NewUploader(c.s3),
		bucket:   c.bucket,
		logger:   logger.With(slog.String("component", "s3_archiver")),
	}
}

// ArchiveSettlement uploads the settlement snapshot under
// settlements/epoch-NNNNNN.json.
func (a *Archiver) ArchiveSettlement(ctx context.Context, rec service.SettlementRecord) error {
	key := fmt.Sprintf("settlements/epoch-%06d.json", rec.Auction.EpochNumber)

	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal settlement: %w", err)
	}

	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}

	a.logger.InfoContext(ctx, "s3blob: settlement archived",
		slog.String("key", key),
		slog.Int64("epoch", rec.Auction.EpochNumber),
		slog.Int("bids", len(rec.Bids)))
	return nil
}
