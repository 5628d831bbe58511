package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/okian/pausemap/internal/domain/week"
)

var (
	minDate = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// SummariesHandler serves stored weekly summaries.
type SummariesHandler struct {
	deps Dependencies
}

// NewSummariesHandler creates a new summaries handler.
func NewSummariesHandler(deps Dependencies) *SummariesHandler {
	return &SummariesHandler{deps: deps}
}

// HandleList handles GET /summaries?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both bounds are optional.
func (h *SummariesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	from, err := dateParam(r, "from", minDate)
	if err != nil {
		writeErr(w, err)
		return
	}
	to, err := dateParam(r, "to", maxDate)
	if err != nil {
		writeErr(w, err)
		return
	}
	if to.Before(from) {
		writeErr(w, fmt.Errorf("%w: to %s is before from %s", ErrBadRequest, to.Format(week.Layout), from.Format(week.Layout)))
		return
	}
	out, err := h.deps.Summaries(r.Context(), from, to)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /summaries/{week}; any day of the week is accepted.
func (h *SummariesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "week")
	wk, err := week.Parse(raw)
	if err != nil {
		writeErr(w, fmt.Errorf("%w: week %q: want YYYY-MM-DD", ErrBadRequest, raw))
		return
	}
	s, err := h.deps.Summary(r.Context(), wk)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func dateParam(r *http.Request, name string, def time.Time) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	t, err := time.Parse(week.Layout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q: want YYYY-MM-DD", ErrBadRequest, name, v)
	}
	return t, nil
}
