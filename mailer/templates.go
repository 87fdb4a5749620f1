package mailer

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "£" + d.StringFixed(2) },
}

var confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(`<h2>Order Confirmed!</h2>
<p>Hi {{.FirstName}},</p>
<p>Your order <strong>{{.Order.OrderNumber}}</strong> has been placed successfully.</p>
<table cellpadding="6" style="border-collapse:collapse;">
<tr><th align="left">Item</th><th align="left">Sold by</th><th>Qty</th><th align="right">Total</th></tr>
{{range .Order.Items}}<tr><td>{{.ProductName}}</td><td>{{.VendorName}}</td><td align="center">{{.Quantity}}</td><td align="right">{{money .LineTotal}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Order.Subtotal}}<br>Shipping: {{money .Order.ShippingFee}}<br>Order total: <strong>{{money .Order.Total}}</strong></p>
<p>Shipping to: {{.Order.ShippingAddress}}</p>
{{if .Order.OrderURL}}<p><a href="{{.Order.OrderURL}}">View your order</a></p>{{end}}
<p>We'll notify you when your order status changes.</p>`))

var statusTmpl = template.Must(template.New("status").Parse(`<h2>Order Status Update</h2>
<p>Hi {{.FirstName}},</p>
<p>Your order <strong>{{.OrderNumber}}</strong> status has been updated to: <strong>{{.Status}}</strong></p>`))

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func firstName(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "there"
	}
	return parts[0]
}
