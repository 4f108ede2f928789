package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/contas-dev/contas/internal/ledger"
	"github.com/contas-dev/contas/internal/model"
	"github.com/contas-dev/contas/internal/period"
	"github.com/contas-dev/contas/internal/session"
)

const dateFormat = "2006-01-02"

type errorJSON struct {
	Error string `json:"error"`
}

type resultJSON struct {
	Imported    int `json:"imported"`
	Skipped     int `json:"skipped"`
	Duplicates  int `json:"duplicates"`
	ParseErrors int `json:"parse_errors"`
}

type transactionJSON struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Account     string `json:"account"`
	Source      string `json:"source"`
	CategoryID  int64  `json:"category_id,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}

type provisionJSON struct {
	ID          int64  `json:"id,omitempty"`
	Period      string `json:"period"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	DueDate     string `json:"due_date"`
}

type categoryJSON struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type summaryJSON struct {
	Period      string              `json:"period"`
	ByCategory  []categoryTotalJSON `json:"by_category"`
	Net         string              `json:"net"`
	Provisioned string              `json:"provisioned"`
}

type categoryTotalJSON struct {
	CategoryID int64  `json:"category_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Total      string `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), errorJSON{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorJSON{Error: fmt.Sprintf(format, args...)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImportFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, "parsing upload: %v", err)
		return
	}
	account := r.FormValue("account")
	if account == "" {
		badRequest(w, "account is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()

	res := s.sess.ImportFile(header.Filename, file, account, r.FormValue("format"))
	writeResult(w, res)
}

func (s *Server) handleImportOpenFinance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
		From      string `json:"from"`
		To        string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "parsing request: %v", err)
		return
	}
	if req.AccountID == "" {
		badRequest(w, "account_id is required")
		return
	}
	from, err := parseOptionalDate(req.From)
	if err != nil {
		badRequest(w, "from: %v", err)
		return
	}
	to, err := parseOptionalDate(req.To)
	if err != nil {
		badRequest(w, "to: %v", err)
		return
	}

	res := s.sess.ImportAccount(r.Context(), req.AccountID, from, to)
	writeResult(w, res)
}

func writeResult(w http.ResponseWriter, res session.Result) {
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, resultJSON{
		Imported:    res.Imported,
		Skipped:     res.Skipped,
		Duplicates:  res.Duplicates,
		ParseErrors: res.ParseErrors,
	})
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateFormat, s)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.sess.Accounts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func requirePeriod(w http.ResponseWriter, r *http.Request) (period.Period, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		badRequest(w, "period is required (YYYY-MM)")
		return period.Period{}, false
	}
	p, err := period.Parse(raw)
	if err != nil {
		badRequest(w, "period: %v", err)
		return period.Period{}, false
	}
	return p, true
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePeriod(w, r)
	if !ok {
		return
	}
	txns, err := s.sess.Store().ListTransactions(p)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]transactionJSON, 0, len(txns))
	for _, t := range txns {
		out = append(out, transactionJSON{
			ID:          t.ID,
			Date:        t.Date.Format(dateFormat),
			Description: t.Description,
			Amount:      t.Amount.StringFixed(2),
			Account:     t.Account,
			Source:      string(t.Source),
			CategoryID:  t.CategoryID,
			ExternalID:  t.ExternalID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}
	var req struct {
		CategoryID int64 `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "parsing request: %v", err)
		return
	}
	if err := s.sess.Store().SetCategory(id, req.CategoryID); err != nil {
		if strings.Contains(err.Error(), "unknown") {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	cats, err := s.sess.Store().Categories()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name, Kind: string(c.Kind)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProvisions(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePeriod(w, r)
	if !ok {
		return
	}
	provisions, err := s.sess.Store().ListProvisions(p.String())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]provisionJSON, 0, len(provisions))
	for _, prov := range provisions {
		out = append(out, marshalProvision(prov))
	}
	writeJSON(w, http.StatusOK, out)
}

func marshalProvision(p model.Provision) provisionJSON {
	return provisionJSON{
		ID:          p.ID,
		Period:      p.Period,
		Description: p.Description,
		Amount:      p.Amount.StringFixed(2),
		DueDate:     p.DueDate.Format(dateFormat),
	}
}

func unmarshalProvision(r *http.Request) (model.Provision, error) {
	var req provisionJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return model.Provision{}, fmt.Errorf("parsing request: %w", err)
	}
	if _, err := period.Parse(req.Period); err != nil {
		return model.Provision{}, fmt.Errorf("period: %w", err)
	}
	if req.Description == "" {
		return model.Provision{}, fmt.Errorf("description is required")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return model.Provision{}, fmt.Errorf("amount: %w", err)
	}
	due, err := time.Parse(dateFormat, req.DueDate)
	if err != nil {
		return model.Provision{}, fmt.Errorf("due_date: %w", err)
	}
	return model.Provision{
		Period:      req.Period,
		Description: req.Description,
		Amount:      amount,
		DueDate:     due,
	}, nil
}

func (s *Server) handleAddProvision(w http.ResponseWriter, r *http.Request) {
	prov, err := unmarshalProvision(r)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	id, err := s.sess.Store().AddProvision(prov)
	if err != nil {
		writeError(w, err)
		return
	}
	prov.ID = id
	writeJSON(w, http.StatusCreated, marshalProvision(prov))
}

func (s *Server) handleUpdateProvision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid provision id")
		return
	}
	prov, err := unmarshalProvision(r)
	if err != nil {
		badRequest(w, "%v", err)
		return
	}
	prov.ID = id
	if err := s.sess.Store().UpdateProvision(prov); err != nil {
		if strings.Contains(err.Error(), "unknown") {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marshalProvision(prov))
}

func (s *Server) handleDeleteProvision(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "invalid provision id")
		return
	}
	if err := s.sess.Store().DeleteProvision(id); err != nil {
		if strings.Contains(err.Error(), "unknown") {
			writeJSON(w, http.StatusNotFound, errorJSON{Error: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePeriod(w, r)
	if !ok {
		return
	}
	summary, err := s.sess.Store().Summarize(p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marshalSummary(summary))
}

func marshalSummary(sum ledger.Summary) summaryJSON {
	out := summaryJSON{
		Period:      sum.Period,
		ByCategory:  make([]categoryTotalJSON, 0, len(sum.ByCategory)),
		Net:         sum.Net.StringFixed(2),
		Provisioned: sum.Provisioned.StringFixed(2),
	}
	for _, ct := range sum.ByCategory {
		out.ByCategory = append(out.ByCategory, categoryTotalJSON{
			CategoryID: ct.CategoryID,
			Name:       ct.Name,
			Kind:       string(ct.Kind),
			Total:      ct.Total.StringFixed(2),
		})
	}
	return out
}
