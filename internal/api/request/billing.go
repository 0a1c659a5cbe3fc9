package request

import "net/http"

// BillingEventFilter holds query parameters for the billing event log.
type BillingEventFilter struct {
	Kind  string
	Limit int
}

// ParseBillingEventFilter extracts kind and limit from query parameters.
// Kind values other than "notification" and "alert" are dropped.
func ParseBillingEventFilter(r *http.Request) BillingEventFilter {
	f := BillingEventFilter{Limit: DefaultLimit}

	switch kind := r.URL.Query().Get("kind"); kind {
	case "notification", "alert":
		f.Kind = kind
	}

	if p := ParsePagination(r); p.Limit > 0 {
		f.Limit = p.Limit
	}

	return f
}
