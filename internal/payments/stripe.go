// Package payments wraps the Stripe API behind one client constructed at
// process start. Handlers and the fulfillment engine receive it as an
// explicit dependency; nothing in this codebase touches stripe.Key.
package payments

import (
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/client"
	"github.com/stripe/stripe-go/v83/webhook"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SuccessURL    string
	CancelURL     string
}

type Client struct {
	api *client.API
	cfg Config
}

func New(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Client{api: api, cfg: cfg}
}

// LineItem is one priced checkout line, amounts in cents.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int64
	ImageURL   string
}

// CreateCheckoutSession opens a hosted checkout page and returns its id
// and redirect URL. Metadata rides along on the session and comes back
// verbatim on the completion webhook.
func (c *Client) CreateCheckoutSession(items []LineItem, customerEmail, couponID string, metadata map[string]string) (string, string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}

	for _, item := range items {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.Name),
		}
		if item.ImageURL != "" {
			productData.Images = []*string{stripe.String(item.ImageURL)}
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(c.cfg.Currency),
				UnitAmount:  stripe.Int64(item.UnitAmount),
				ProductData: productData,
			},
		})
	}

	if couponID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{Coupon: stripe.String(couponID)},
		}
	}

	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.ID, sess.URL, nil
}

// CreateCoupon mints a single-use Stripe coupon mirroring a storefront
// discount. Exactly one of percentOff / amountOffCents is used.
func (c *Client) CreateCoupon(percentOff float64, amountOffCents int64) (string, error) {
	params := &stripe.CouponParams{
		Duration:       stripe.String(string(stripe.CouponDurationOnce)),
		MaxRedemptions: stripe.Int64(1),
	}
	if percentOff > 0 {
		params.PercentOff = stripe.Float64(percentOff)
	} else {
		params.AmountOff = stripe.Int64(amountOffCents)
		params.Currency = stripe.String(c.cfg.Currency)
	}

	coupon, err := c.api.Coupons.New(params)
	if err != nil {
		return "", fmt.Errorf("create coupon: %w", err)
	}
	return coupon.ID, nil
}

// VerifyWebhook checks the signature over the raw payload. Verification
// must happen before any parsing; a re-serialized body would not match.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signatureHeader, c.cfg.WebhookSecret)
}

// PaymentIntentID resolves the payment intent behind a checkout session,
// which is what refunds are issued against.
func (c *Client) PaymentIntentID(sessionID string) (string, error) {
	params := &stripe.CheckoutSessionParams{}
	params.AddExpand("payment_intent")

	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return "", fmt.Errorf("retrieve session %s: %w", sessionID, err)
	}
	if sess.PaymentIntent == nil {
		return "", fmt.Errorf("session %s has no payment intent", sessionID)
	}
	return sess.PaymentIntent.ID, nil
}

// Refund refunds the full payment behind a payment intent.
func (c *Client) Refund(paymentIntentID string) error {
	_, err := c.api.Refunds.New(&stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	})
	if err != nil {
		return fmt.Errorf("refund payment intent %s: %w", paymentIntentID, err)
	}
	return nil
}
