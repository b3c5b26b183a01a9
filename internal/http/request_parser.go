package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cassa/internal/core"
)

// ParsePeriodParams extracts a period from request values, falling back
// to the given period for anything missing or out of range. Accepts
// either a combined "period" value in MM-YYYY form or separate "month"
// and "year" values. The fallback is normally the ledger's current
// period, so a stale or hand-edited query can never address an invalid
// month.
func ParsePeriodParams(values url.Values, fallback core.Period) core.Period {
	if v := strings.TrimSpace(values.Get("period")); v != "" {
		if p, err := core.ParsePeriodKey(v); err == nil {
			return p
		}
	}

	p := fallback
	if v := strings.TrimSpace(values.Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			p.Year = y
		}
	}
	if v := strings.TrimSpace(values.Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			p.Month = m
		}
	}

	if err := p.Validate(); err != nil {
		return fallback
	}
	return p
}

// ParseMemberID parses a member ID form value.
func ParseMemberID(v string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse member id %q: %w", v, err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("member id %d out of range", id)
	}
	return id, nil
}

// RequireMethod returns an error response builder unless the request
// method is one of methods. Nil means the method is acceptable.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form, returning an error response
// builder on failure and nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
