package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	docRule     = "======================================"
	docThinRule = "--------------------------------------"
	docDate     = "02/01/2006"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// InvoiceFilename is the download name of an order's invoice.
func InvoiceFilename(o Order) string {
	return "invoice-" + o.Number + ".txt"
}

// Invoice renders the plain text invoice of o.
func Invoice(o Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVOICE - %s\n%s\n\n", o.Number, docRule)

	b.WriteString("CUSTOMER:\n")
	fmt.Fprintf(&b, "%s %s\n%s\n%s\n\n", o.Customer.FirstName, o.Customer.LastName, o.Customer.Email, o.Customer.Phone)

	a := o.ShippingAddress
	b.WriteString("SHIPPING ADDRESS:\n")
	fmt.Fprintf(&b, "%s\n%s, %s\n%s\n%s\n\n", a.Street, a.City, a.State, a.ZipCode, a.Country)

	fmt.Fprintf(&b, "ITEMS:\n%s\n", docRule)
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%s x%d - %s\n", it.ProductName, it.Quantity, money(it.LineTotal()))
	}

	fmt.Fprintf(&b, "\nTOTALS:\n%s\n", docRule)
	fmt.Fprintf(&b, "Subtotal: %s\n", money(o.Subtotal))
	fmt.Fprintf(&b, "Shipping: %s\n", money(o.Shipping))
	fmt.Fprintf(&b, "Tax: %s\n", money(o.Tax))
	fmt.Fprintf(&b, "TOTAL: %s\n\n", money(o.Total))

	fmt.Fprintf(&b, "Date: %s\n", o.CreatedAt.Format(docDate))
	fmt.Fprintf(&b, "Status: %s\n\n", o.Status.Label())
	b.WriteString("Thank you for your purchase!")
	return b.String()
}

// ReportFilename is the download name of the orders report generated at now.
func ReportFilename(now time.Time) string {
	return "orders-report-" + now.Format("2006-01-02") + ".txt"
}

// StatusCounts tallies orders per status.
func StatusCounts(orders []Order) map[Status]int {
	counts := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		counts[s] = 0
	}
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts
}

// Revenue sums order totals.
func Revenue(orders []Order) decimal.Decimal {
	sum := decimal.Zero
	for _, o := range orders {
		sum = sum.Add(o.Total)
	}
	return sum
}

// RenderReport renders the orders report. Count, revenue and details cover
// the orders matching f; the per-status section covers every order.
func RenderReport(all []Order, f ListFilter, now time.Time) string {
	filtered := f.Apply(all)
	counts := StatusCounts(all)

	var b strings.Builder
	fmt.Fprintf(&b, "ORDERS REPORT\n%s\n", docRule)
	fmt.Fprintf(&b, "Generated: %s\n", now.Format(docDate))
	fmt.Fprintf(&b, "Total orders: %d\n", len(filtered))
	fmt.Fprintf(&b, "Total revenue: %s\n\n", money(Revenue(filtered)))

	fmt.Fprintf(&b, "BY STATUS:\n%s\n", docThinRule)
	for _, s := range Statuses {
		fmt.Fprintf(&b, "%s: %d\n", s.Label(), counts[s])
	}

	fmt.Fprintf(&b, "\nORDER DETAILS:\n%s\n", docRule)
	for _, o := range filtered {
		fmt.Fprintf(&b, "\nOrder: %s\n", o.Number)
		fmt.Fprintf(&b, "Customer: %s %s\n", o.Customer.FirstName, o.Customer.LastName)
		fmt.Fprintf(&b, "Email: %s\n", o.Customer.Email)
		fmt.Fprintf(&b, "Total: %s\n", money(o.Total))
		fmt.Fprintf(&b, "Status: %s\n", o.Status.Label())
		fmt.Fprintf(&b, "Date: %s\n---\n", o.CreatedAt.Format(docDate))
	}
	return strings.TrimRight(b.String(), "\n")
}
