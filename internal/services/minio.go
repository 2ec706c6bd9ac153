package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// InvoiceArchive stores rendered invoice PDFs in object storage so they
// survive independently of the mail pipeline.
type InvoiceArchive struct {
	Client *minio.Client
	Bucket string
}

func (a *InvoiceArchive) StoreInvoice(ctx context.Context, orderNumber string, pdf []byte) error {
	if a == nil || a.Client == nil {
		return fmt.Errorf("MinIO not configured")
	}

	objectName := fmt.Sprintf("invoice_%s.pdf", orderNumber)
	_, err := a.Client.PutObject(ctx, a.Bucket, objectName,
		bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	return err
}
