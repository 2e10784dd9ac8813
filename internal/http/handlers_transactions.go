package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"tally/internal/core"
	"tally/internal/storage"
)

// transactionFilterFromQuery builds the listing filter from query
// parameters shared by the list and export endpoints.
func transactionFilterFromQuery(r *http.Request) (storage.TransactionFilter, error) {
	var filter storage.TransactionFilter

	start, err := queryDate(r, "start_date")
	if err != nil {
		return filter, err
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		return filter, err
	}
	filter.StartDate = start
	filter.EndDate = end

	if v := strings.TrimSpace(r.URL.Query().Get("category_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return filter, fmt.Errorf("category_id must be a positive integer")
		}
		filter.CategoryID = &id
	}

	filter.Type, err = queryType(r, true)
	if err != nil {
		return filter, err
	}

	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{
		{"min_amount", &filter.MinAmount},
		{"max_amount", &filter.MaxAmount},
	} {
		v := strings.TrimSpace(r.URL.Query().Get(p.name))
		if v == "" {
			continue
		}
		amount, err := core.ParseAmount(v)
		if err != nil {
			return filter, fmt.Errorf("%s must be a decimal amount", p.name)
		}
		*p.dst = &amount
	}

	filter.Keyword = strings.TrimSpace(r.URL.Query().Get("search"))
	return filter, nil
}

type transactionListResponse struct {
	Transactions []storage.TransactionRecord `json:"transactions"`
	Pagination   struct {
		Total int64 `json:"total"`
		Page  int   `json:"page"`
		Limit int   `json:"limit"`
	} `json:"pagination"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

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

	total, err := s.txnRepo.CountByUser(r.Context(), user.ID, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	records, err := s.txnRepo.FindByUser(r.Context(), user.ID, filter, limit, (page-1)*limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := transactionListResponse{Transactions: records}
	resp.Pagination.Total = total
	resp.Pagination.Page = page
	resp.Pagination.Limit = limit
	writeJSON(w, http.StatusOK, resp)
}

type createTransactionRequest struct {
	CategoryID  *int64          `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Date        core.Date       `json:"date"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := s.transactions.Create(r.Context(), core.Transaction{
		UserID:      user.ID,
		CategoryID:  req.CategoryID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Date:        req.Date,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.txnRepo.FindByIDForUser(r.Context(), id, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleUpdateTransaction applies a partial update. Fields absent from
// the body are left alone; an explicit null category_id clears the
// category.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var updates storage.TransactionUpdate
	if v, ok := raw["category_id"]; ok {
		updates.SetCategory = true
		if string(v) != "null" {
			var categoryID int64
			if err := json.Unmarshal(v, &categoryID); err != nil {
				writeError(w, http.StatusBadRequest, "category_id must be an integer or null")
				return
			}
			updates.CategoryID = &categoryID
		}
	}
	if v, ok := raw["amount"]; ok {
		var amount decimal.Decimal
		if err := json.Unmarshal(v, &amount); err != nil {
			writeDomainError(w, r, core.ErrInvalidAmount)
			return
		}
		updates.Amount = &amount
	}
	if v, ok := raw["description"]; ok {
		var description string
		if err := json.Unmarshal(v, &description); err != nil {
			writeError(w, http.StatusBadRequest, "description must be a string")
			return
		}
		description = strings.TrimSpace(description)
		updates.Description = &description
	}
	if v, ok := raw["date"]; ok {
		var date core.Date
		if err := json.Unmarshal(v, &date); err != nil {
			writeDomainError(w, r, core.ErrInvalidDate)
			return
		}
		updates.Date = &date
	}

	record, err := s.transactions.Update(r.Context(), id, user.ID, updates)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.transactions.Delete(r.Context(), id, user.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}

// handleExportTransactions streams the caller's filtered transactions as
// a JSON or xlsx attachment.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	filter, err := transactionFilterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := strings.TrimSpace(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "format must be json or xlsx")
		return
	}

	// LIMIT -1 is unbounded in SQLite.
	records, err := s.txnRepo.FindByUser(r.Context(), user.ID, filter, -1, 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	stamp := time.Now().Format("20060102")
	if format == "json" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transactions_"+stamp+".json"))
		writeJSON(w, http.StatusOK, records)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{"ID", "Date", "Description", "Category", "Type", "Amount"}
	for i, h := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheet, cell, h)
	}
	for i, rec := range records {
		row := i + 2
		categoryName, categoryType := "", ""
		if rec.Category != nil {
			categoryName = rec.Category.Name
			categoryType = string(rec.Category.Type)
		}
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.Date.String())
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), rec.Description)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), categoryName)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), categoryType)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), rec.Amount.InexactFloat64())
	}
	f.SetColWidth(sheet, "B", "B", 12)
	f.SetColWidth(sheet, "C", "C", 30)
	f.SetColWidth(sheet, "D", "D", 15)

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "transactions_"+stamp+".xlsx"))
	if err := f.Write(w); err != nil {
		s.log.ErrorContext(r.Context(), "Failed writing xlsx export", "error", err)
	}
}
