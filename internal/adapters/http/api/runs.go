package api

import "net/http"

// RunsHandler triggers pipeline runs.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

// HandleCreate handles POST /runs. The run executes synchronously and the
// response carries its description.
func (h *RunsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Process(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}
