package http

import (
	"net/http"
	"strings"
	"time"

	"tally/internal/core"
)

func (s *Server) handleAnalyticsMonthly(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.Monthly(r.Context(), user.ID, year)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAnalyticsCategory reports each category's share of the period
// total for one type, expense by default.
func (s *Server) handleAnalyticsCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	catType, err := queryType(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if catType == "" {
		catType = core.Expense
	}
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.CategoryShares(r.Context(), user.ID, catType, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsTrend(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	months, err := queryIntRange(r, "months", 6, 1, 24)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.Trend(r.Context(), user.ID, months, time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsComparison(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.Comparison(r.Context(), user.ID, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsQuarterly(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	year, err := queryYear(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.Quarterly(r.Context(), user.ID, year)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsCategoryDetail(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	typeFilter := strings.TrimSpace(r.URL.Query().Get("type"))
	switch typeFilter {
	case "", "all", "income", "expense":
	default:
		writeError(w, http.StatusBadRequest, "type must be income, expense, or all")
		return
	}
	if typeFilter == "" {
		typeFilter = "all"
	}
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.CategoryDetails(r.Context(), user.ID, typeFilter, period)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsTransactionDetail(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryIntRange(r, "limit", 50, 1, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := queryPage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.TransactionDetails(r.Context(), user.ID, period, filter, page, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAnalyticsCategoryTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	period, err := queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryIntRange(r, "limit", 20, 1, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.analytics.CategoryTransactions(r.Context(), user.ID, id, period, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
