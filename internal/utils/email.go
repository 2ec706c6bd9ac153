package utils

import (
	"bytes"
	"fmt"
	"log"

	"github.com/wneessen/go-mail"

	"farmstore_back_end/internal/models"
)

// Mailer sends transactional mail over SMTP. Configured once at startup.
type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendReceipt emails the order confirmation, attaching the invoice PDF
// when one was rendered.
func (m *Mailer) SendReceipt(order *models.Order, pdf []byte) error {
	if m == nil || m.Host == "" {
		return fmt.Errorf("mailer not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return err
	}
	if err := msg.To(order.Customer.Email); err != nil {
		return err
	}
	msg.Subject(fmt.Sprintf("Your order %s is confirmed", order.OrderNumber))
	msg.SetBodyString(mail.TypeTextHTML, GenerateOrderReceiptHTML(order))

	if pdf != nil {
		msg.AttachReader(fmt.Sprintf("invoice_%s.pdf", order.OrderNumber), bytes.NewReader(pdf))
	}

	client, err := mail.NewClient(m.Host,
		mail.WithPort(m.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(m.Username),
		mail.WithPassword(m.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Sending receipt email to", order.Customer.Email)
	return client.DialAndSend(msg)
}

// GenerateOrderReceiptHTML renders the confirmation email body.
func GenerateOrderReceiptHTML(order *models.Order) string {
	itemsHTML := ""
	for _, item := range order.Items {
		itemsHTML += fmt.Sprintf(`
			<tr>
				<td>%s</td>
				<td>%d</td>
				<td>%.2f</td>
				<td>%.2f</td>
			</tr>`, item.Name, item.Quantity, item.Price, item.Price*float64(item.Quantity))
	}

	discountHTML := ""
	if order.Discount != nil {
		discountHTML = fmt.Sprintf(`
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right;">Discount (%s):</td>
					<td style="padding: 10px;">-%.2f</td>
				</tr>`, order.Discount.Code, order.Discount.Amount)
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Order confirmation</title>
</head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #2d5a27;">Thank you for your order, %s!</h2>
		<p>Order <strong>%s</strong> has been confirmed and is being prepared.</p>

		<h3>Order details</h3>
		<table style="width: 100%%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Product</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Qty</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Unit price</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
				%s
			</tbody>
			<tfoot>
				%s
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
					<td style="padding: 10px; font-weight: bold;">%.2f</td>
				</tr>
			</tfoot>
		</table>

		<p>Shipping to: %s, %s %s</p>

		<p style="margin-top: 30px; color: #555;">
			Best regards,<br>
			<strong>The Farm Store team</strong>
		</p>
	</div>
</body>
</html>`, order.Customer.Name, order.OrderNumber, itemsHTML, discountHTML, order.TotalPrice,
		order.ShippingAddress.Line, order.ShippingAddress.PostalCode, order.ShippingAddress.City)
}
