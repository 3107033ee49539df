package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/gridhost/internal/core"
	"github.com/JonMunkholm/gridhost/internal/logging"
	"github.com/JonMunkholm/gridhost/internal/paste"
	"github.com/JonMunkholm/gridhost/internal/protocol"
	"github.com/JonMunkholm/gridhost/internal/web/templates"
)

const (
	// maxMessageSize bounds one surface message; a full-sheet paste of a few
	// thousand rows fits comfortably.
	maxMessageSize = 16 << 20

	// maxCommandSize bounds the small JSON bodies of host commands.
	maxCommandSize = 64 << 10

	// keepAliveInterval keeps idle event streams open through proxies.
	keepAliveInterval = 25 * time.Second
)

// decodeJSON reads a small JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxCommandSize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// session resolves the {id} URL parameter, writing the error response when
// it names no open session.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	sess, err := s.service.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return sess, true
}

// handleHealth reports liveness plus session and lookup load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.service.SessionCount(),
		"lookups":  s.service.Limiter().Status(),
	})
}

// handleListModes returns every editing mode.
func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListModes())
}

// handleInspect runs the paste checks over a block of text without a
// session, so a surface can warn before it even sends the paste.
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paste.InspectBlock(req.Text))
}

// handleListSessions describes every open session.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListSessions())
}

// createSessionResponse is returned when a session opens.
type createSessionResponse struct {
	ID      string            `json:"id"`
	Mode    string            `json:"mode"`
	Tenant  string            `json:"tenant"`
	Columns []protocol.Column `json:"columns"`
	Events  string            `json:"events"`
}

// handleCreateSession opens a session for the requested mode.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Mode == "" {
		s.respondError(w, r, fmt.Errorf("%w: mode is required", errBadRequest))
		return
	}

	ctx := withTenant(r.Context(), r)
	tenant := core.TenantFromContext(ctx)
	sess, err := s.service.CreateSession(ctx, req.Mode, tenant)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	mode, _ := core.Get(sess.Mode)
	writeJSON(w, http.StatusCreated, createSessionResponse{
		ID:      sess.ID,
		Mode:    sess.Mode,
		Tenant:  sess.Tenant,
		Columns: mode.Columns,
		Events:  "/api/sessions/" + sess.ID + "/events",
	})
}

// handleSessionSummary reports row counts and state.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sum, err := sess.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleCloseSession ends a session.
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CloseSession(chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleEvents streams host→surface messages and advisories as server-sent
// events until the client leaves or the session closes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("streaming not supported", "error", err)
		return
	}

	frames, cancel := sess.Subscribe()
	defer cancel()

	logger := logging.WithFields(r.Context(), "session_id", sess.ID)
	logger.Debug("event stream opened")

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			event, data, err := encodeFrame(f)
			if err != nil {
				logger.Error("encode frame", "kind", f.Kind, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			logger.Debug("event stream closed by client")
			return
		}
	}
}

// encodeFrame returns the SSE event name and payload for f. Messages are
// sent in their wire envelope so the surface decodes them like any other
// channel.
func encodeFrame(f core.Frame) (event string, data []byte, err error) {
	switch f.Kind {
	case core.FrameAdvisory:
		data, err = json.Marshal(f.Advisory)
		return string(core.FrameAdvisory), data, err
	default:
		data, err = protocol.Encode(f.Message)
		return string(core.FrameMessage), data, err
	}
}

// handleMessage delivers one surface→host message envelope.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageSize))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := sess.DeliverFrame(r.Context(), bytes.TrimSpace(data)); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleSnapshot returns the current snapshot without waiting for the
// next emission.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleFormula applies a formula to the selected rows, or all rows.
func (s *Server) handleFormula(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Formula string `json:"formula"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := sess.ApplyFormula(r.Context(), req.Formula)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleClear empties the table.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoad replaces the rows with the tenant's catalog.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, err := sess.Load(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"rows": n})
}

// handleValidate lists blocking errors and focuses the first on the surface.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	errs, err := sess.Validate(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if errs == nil {
		errs = []core.RowError{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(errs) == 0,
		"errors": errs,
	})
}

// handleChanges returns the rows to save.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	rows, err := sess.ChangedRows(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if rows == nil {
		rows = []core.ChangedRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// handleAdvisories lists live advisories, as toasts for HTMX clients.
func (s *Server) handleAdvisories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	list, err := sess.Advisories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if wantsHTML(r) {
		items := make([]templates.AdvisoryItem, len(list))
		for i, a := range list {
			items[i] = templates.AdvisoryItem{ID: a.ID, Kind: string(a.Kind), Message: a.Message, Samples: a.Samples}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.AdvisoryList(items).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render advisories", "error", err)
		}
		return
	}

	if list == nil {
		list = []core.Advisory{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDismissAdvisories drops every advisory.
func (s *Server) handleDismissAdvisories(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.DismissAdvisories(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleInvalidateCache forgets the session's cached lookups.
func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.InvalidateCache()
	w.WriteHeader(http.StatusNoContent)
}

// handleExport downloads the current snapshot as a workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := core.ExportXLSX(&buf, snap); err != nil {
		s.respondError(w, r, fmt.Errorf("export workbook: %w", err))
		return
	}

	filename := fmt.Sprintf("%s_%s.xlsx", sess.Mode, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	_, _ = buf.WriteTo(w)
}
