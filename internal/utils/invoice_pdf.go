package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	qrcode "github.com/skip2/go-qrcode"

	"farmstore_back_end/internal/models"
)

// InvoiceRenderer prints the frontend invoice page to PDF via headless
// Chrome. Rendering is a best-effort fulfillment side effect; callers
// log and continue when it fails.
type InvoiceRenderer struct {
	FrontendURL string
}

// Render loads the invoice page for the order and prints it to PDF. A QR
// code carrying the payment reference is passed along for the page to
// embed.
func (r *InvoiceRenderer) Render(order *models.Order) ([]byte, error) {
	if r == nil || r.FrontendURL == "" {
		return nil, fmt.Errorf("invoice renderer not configured")
	}

	qr, err := generateReferenceQR(order)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("order", order.OrderNumber)
	q.Set("qr", qr)
	fullURL := fmt.Sprintf("%s?%s", r.FrontendURL, q.Encode())

	ctx, cancel := chromedp.NewContext(context.Background())
	defer cancel()

	ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var pdfBuf []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate(fullURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

// generateReferenceQR encodes the order's payment reference as a PNG QR,
// base64-wrapped for direct use in an <img src="..."> tag.
func generateReferenceQR(order *models.Order) (string, error) {
	payload := fmt.Sprintf("%s|%.2f|%s", order.OrderNumber, order.TotalPrice, order.Customer.Email)
	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
