package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/core"
)

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}

// queryYear parses the year parameter, defaulting to the current year.
func queryYear(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("year"))
	if v == "" {
		return time.Now().Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 2000 || year > 2100 {
		return 0, fmt.Errorf("year must be between 2000 and 2100")
	}
	return year, nil
}

// queryMonth parses the optional month parameter; 0 means absent.
func queryMonth(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("month"))
	if v == "" {
		return 0, nil
	}
	month, err := strconv.Atoi(v)
	if err != nil || month < 1 || month > 12 {
		return 0, fmt.Errorf("month must be between 1 and 12")
	}
	return month, nil
}

// queryQuarter parses the optional quarter parameter ("Q1".."Q4").
func queryQuarter(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get("quarter"))
	if v == "" {
		return "", nil
	}
	switch v {
	case "Q1", "Q2", "Q3", "Q4":
		return v, nil
	}
	return "", fmt.Errorf("quarter must be one of Q1, Q2, Q3, Q4")
}

// queryPeriod resolves the year/month/quarter selector shared by the
// reporting endpoints.
func queryPeriod(r *http.Request) (core.Period, error) {
	year, err := queryYear(r)
	if err != nil {
		return core.Period{}, err
	}
	month, err := queryMonth(r)
	if err != nil {
		return core.Period{}, err
	}
	quarter, err := queryQuarter(r)
	if err != nil {
		return core.Period{}, err
	}
	return core.ResolvePeriod(year, month, quarter)
}

// queryType parses the type parameter. allowAll admits "all" (returned as
// the empty filter).
func queryType(r *http.Request, allowAll bool) (core.CategoryType, error) {
	v := strings.TrimSpace(r.URL.Query().Get("type"))
	if v == "" || (allowAll && v == "all") {
		return "", nil
	}
	catType := core.CategoryType(v)
	if !catType.Valid() {
		return "", fmt.Errorf("type must be income or expense")
	}
	return catType, nil
}

// queryIntRange parses an optional bounded integer parameter.
func queryIntRange(r *http.Request, name string, def, min, max int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d", name, min, max)
	}
	return n, nil
}

// queryPage parses the page parameter (1-based, default 1).
func queryPage(r *http.Request) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("page"))
	if v == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("page must be a positive integer")
	}
	return page, nil
}

// queryDate parses an optional YYYY-MM-DD parameter.
func queryDate(r *http.Request, name string) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a YYYY-MM-DD date", name)
	}
	return &d, nil
}
