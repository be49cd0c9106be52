package orders

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/storefront/storefront/internal/platform/httpx"
)

const dateLayout = "2006-01-02"

// ListFilter narrows the admin order list.
type ListFilter struct {
	Status   Status     `json:"status,omitempty"`
	Search   string     `json:"search,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Page     int        `json:"page"`
	Limit    int        `json:"limit"`
}

// ParseListFilter reads status, search, date_from, date_to, page and limit.
// An empty status or "all" matches every status. date_to covers the whole
// day it names.
func ParseListFilter(q url.Values) (ListFilter, error) {
	f := ListFilter{Page: 1, Limit: 20}
	fields := httpx.FieldErrors{}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" && raw != "all" {
		s, err := ParseStatus(raw)
		if err != nil {
			fields["status"] = "must be all or one of: pending confirmed shipped delivered cancelled"
		} else {
			f.Status = s
		}
	}
	f.Search = strings.TrimSpace(q.Get("search"))

	if raw := strings.TrimSpace(q.Get("date_from")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["date_from"] = "must be a date (YYYY-MM-DD)"
		} else {
			f.DateFrom = &t
		}
	}
	if raw := strings.TrimSpace(q.Get("date_to")); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			fields["date_to"] = "must be a date (YYYY-MM-DD)"
		} else {
			end := endOfDay(t)
			f.DateTo = &end
		}
	}
	if raw := q.Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Page = n
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			f.Limit = min(n, 100)
		}
	}

	if len(fields) > 0 {
		return ListFilter{}, fields
	}
	return f, nil
}

func endOfDay(t time.Time) time.Time {
	return t.Add(24*time.Hour - time.Nanosecond)
}

// Match reports whether o passes the status, search and date criteria.
// Paging is ignored.
func (f ListFilter) Match(o Order) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.DateFrom != nil && o.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && o.CreatedAt.After(*f.DateTo) {
		return false
	}
	if f.Search != "" {
		fold := cases.Fold()
		term := fold.String(f.Search)
		if !strings.Contains(fold.String(o.Number), term) &&
			!strings.Contains(fold.String(o.Customer.Email), term) &&
			!strings.Contains(fold.String(o.Customer.FirstName+" "+o.Customer.LastName), term) {
			return false
		}
	}
	return true
}

// Apply returns the orders that match f, preserving order.
func (f ListFilter) Apply(all []Order) []Order {
	out := make([]Order, 0, len(all))
	for _, o := range all {
		if f.Match(o) {
			out = append(out, o)
		}
	}
	return out
}
