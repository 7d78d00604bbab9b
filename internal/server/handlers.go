package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"

	"fieldwatch-agent/pkg/catalog"
	"fieldwatch-agent/pkg/historystore"
	"fieldwatch-agent/pkg/identitykey"
	"fieldwatch-agent/pkg/stack"
)

// registerRoutes wires one route per external operation named in spec.md
// §6 (`enable-tracking`, `clear-history`, `emulate-field-watchpoint`,
// `get-field-modifications`, `get-container-modifications`,
// `get-stack(container, index)`, `get-stack(owner, field, index)`), plus
// the known-methods introspection endpoint and the full-history export.
func (s *Server) registerRoutes(router *mux.Router) {
	router.HandleFunc("/v1/tracking", s.handleSetTracking).Methods(http.MethodPost)
	router.HandleFunc("/v1/history", s.handleClearHistory).Methods(http.MethodDelete)
	router.HandleFunc("/v1/watchpoints", s.handleEmulateWatchpoint).Methods(http.MethodPost)
	router.HandleFunc("/v1/fields/modifications", s.handleFieldModifications).Methods(http.MethodGet)
	router.HandleFunc("/v1/fields/stack/{index}", s.handleFieldStack).Methods(http.MethodGet)
	router.HandleFunc("/v1/containers/{id}/modifications", s.handleContainerModifications).Methods(http.MethodGet)
	router.HandleFunc("/v1/containers/{id}/stack/{index}", s.handleContainerStack).Methods(http.MethodGet)
	router.HandleFunc("/v1/known-methods", s.handleKnownMethods).Methods(http.MethodGet)
	router.HandleFunc("/v1/export", s.handleExport).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ownerKeyFromQuery resolves an optional "owner_id" query parameter to the
// identitykey.Key previously minted for it, defaulting to the nil-owner
// identity when absent — this HTTP surface tracks fields at (class, field)
// granularity unless a debugger has already been handed an owner id by an
// earlier response (see DESIGN.md's note on the HTTP/identity boundary).
func (s *Server) ownerKeyFromQuery(r *http.Request) identitykey.Key {
	id := r.URL.Query().Get("owner_id")
	if id == "" {
		return identitykey.Of(nil)
	}
	key, ok := s.ids.keyFor(id)
	if !ok {
		return identitykey.Of(nil)
	}
	return key
}

type trackingRequest struct {
	Class   string `json:"class"`
	Field   string `json:"field"`
	OwnerID string `json:"owner_id,omitempty"`
	Enabled bool   `json:"enabled"`
}

// handleSetTracking implements `enable-tracking`/`set-tracking-enabled`.
func (s *Server) handleSetTracking(w http.ResponseWriter, r *http.Request) {
	var req trackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Class == "" || req.Field == "" {
		writeError(w, http.StatusBadRequest, "class and field are required")
		return
	}
	owner := s.resolveOwnerOrZero(req.OwnerID)
	locator := historystore.FieldLocator{Class: req.Class, Field: req.Field, Owner: owner}
	s.runtime.History().SetTrackingEnabled(locator, req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) resolveOwnerOrZero(ownerID string) identitykey.Key {
	if ownerID == "" {
		return identitykey.Of(nil)
	}
	if key, ok := s.ids.keyFor(ownerID); ok {
		return key
	}
	return identitykey.Of(nil)
}

// handleClearHistory implements `clear-history`. Class and field are read
// from the query string, matching a DELETE request's usual lack of a body.
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")
	field := r.URL.Query().Get("field")
	if class == "" || field == "" {
		writeError(w, http.StatusBadRequest, "class and field query parameters are required")
		return
	}
	s.runtime.History().ClearHistory(class, field)
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type watchpointRequest struct {
	Class       string `json:"class"`
	Field       string `json:"field"`
	OwnerID     string `json:"owner_id,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	SaveStack   bool   `json:"save_stack"`
}

// handleEmulateWatchpoint implements `emulate-field-watchpoint`: forces a
// FieldModification to be recorded for a write the target program already
// performed through a path this HTTP surface never saw directly — the
// container and owner are identified by ids an earlier response already
// minted, not by values in this request body.
func (s *Server) handleEmulateWatchpoint(w http.ResponseWriter, r *http.Request) {
	var req watchpointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Class == "" || req.Field == "" {
		writeError(w, http.StatusBadRequest, "class and field are required")
		return
	}
	owner := s.resolveOwnerOrZero(req.OwnerID)
	container := s.resolveOwnerOrZero(req.ContainerID)

	locator := historystore.FieldLocator{Class: req.Class, Field: req.Field, Owner: owner}
	if !s.runtime.History().IsActive(locator) {
		writeError(w, http.StatusNotFound, "locator is not tracked")
		return
	}
	if !container.IsZero() {
		s.runtime.History().RegisterTracker(container, locator)
	}
	var frames stack.Frames
	if req.SaveStack {
		frames = stack.Capture(1)
	}
	s.runtime.History().AppendFieldModification(locator, historystore.FieldModification{Container: container, Stack: frames})
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

type fieldModificationView struct {
	Container string           `json:"container,omitempty"`
	Stack     []stackFrameView `json:"stack"`
}

func (s *Server) toFieldModificationView(mod historystore.FieldModification) fieldModificationView {
	v := fieldModificationView{Stack: toStackFrameViews(mod.Stack)}
	if !mod.Container.IsZero() {
		v.Container = s.ids.idFor(mod.Container)
	}
	return v
}

// handleFieldModifications implements `get-field-modifications`.
func (s *Server) handleFieldModifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	class, field := q.Get("class"), q.Get("field")
	if class == "" || field == "" {
		writeError(w, http.StatusBadRequest, "class and field query parameters are required")
		return
	}
	owner := s.ownerKeyFromQuery(r)
	locator := historystore.FieldLocator{Class: class, Field: field, Owner: owner}
	mods := s.runtime.History().GetFieldModifications(locator)

	out := make([]fieldModificationView, 0, len(mods))
	for _, mod := range mods {
		out = append(out, s.toFieldModificationView(mod))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleFieldStack implements `get-stack(owner, field, index)`.
func (s *Server) handleFieldStack(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	q := r.URL.Query()
	class, field := q.Get("class"), q.Get("field")
	if class == "" || field == "" {
		writeError(w, http.StatusBadRequest, "class and field query parameters are required")
		return
	}
	owner := s.ownerKeyFromQuery(r)
	locator := historystore.FieldLocator{Class: class, Field: field, Owner: owner}
	frames := s.runtime.History().GetFieldStack(locator, index)
	writeJSON(w, http.StatusOK, toStackFrameViews(frames))
}

type containerModificationView struct {
	Element    any              `json:"element,omitempty"`
	IsAddition bool             `json:"is_addition"`
	Stack      []stackFrameView `json:"stack"`
}

// handleContainerModifications implements `get-container-modifications`.
func (s *Server) handleContainerModifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	key, ok := s.ids.keyFor(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown container id")
		return
	}
	mods := s.runtime.History().GetContainerModifications(key)
	out := make([]containerModificationView, 0, len(mods))
	for _, mod := range mods {
		out = append(out, containerModificationView{
			Element:    mod.Element,
			IsAddition: mod.IsAddition,
			Stack:      toStackFrameViews(mod.Stack),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleContainerStack implements `get-stack(container, index)`.
func (s *Server) handleContainerStack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, ok := s.ids.keyFor(vars["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown container id")
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	frames := s.runtime.History().GetContainerStack(key, index)
	writeJSON(w, http.StatusOK, toStackFrameViews(frames))
}

type stackFrameView struct {
	Class  string `json:"class"`
	Method string `json:"method"`
	Line   int32  `json:"line"`
}

func toStackFrameViews(frames stack.Frames) []stackFrameView {
	out := make([]stackFrameView, 0, len(frames))
	for _, f := range frames {
		out = append(out, stackFrameView{Class: f.Class, Method: f.Method, Line: f.Line})
	}
	return out
}

// handleKnownMethods implements the known-methods ABI introspection
// endpoint: for a given type name, which methods are Immutable/
// Documented/Replaceable/Default.
func (s *Server) handleKnownMethods(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		writeJSON(w, http.StatusOK, catalog.KnownTypes())
		return
	}
	methods := catalog.KnownMethods(typeName)
	if methods == nil {
		writeError(w, http.StatusNotFound, "no known-methods entry for type")
		return
	}
	out := make(map[string]string, len(methods))
	for name, kind := range methods {
		out[name] = kind.String()
	}
	writeJSON(w, http.StatusOK, out)
}

type exportFieldView struct {
	Class         string                  `json:"class"`
	Field         string                  `json:"field"`
	Modifications []fieldModificationView `json:"modifications"`
}

type exportContainerView struct {
	ContainerID   string                      `json:"container_id"`
	Modifications []containerModificationView `json:"modifications"`
}

// handleExport streams a gzip-compressed snapshot of the entire
// HistoryStore, for offline analysis of a history too large to page
// through one locator/container at a time.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	fields, containers := s.runtime.History().Export()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(w)
	defer gz.Close()

	fieldViews := make([]exportFieldView, 0, len(fields))
	for _, snap := range fields {
		mods := make([]fieldModificationView, 0, len(snap.Modifications))
		for _, mod := range snap.Modifications {
			mods = append(mods, s.toFieldModificationView(mod))
		}
		fieldViews = append(fieldViews, exportFieldView{
			Class:         snap.Locator.Class,
			Field:         snap.Locator.Field,
			Modifications: mods,
		})
	}

	containerViews := make([]exportContainerView, 0, len(containers))
	for _, snap := range containers {
		mods := make([]containerModificationView, 0, len(snap.Modifications))
		for _, mod := range snap.Modifications {
			mods = append(mods, containerModificationView{
				Element:    mod.Element,
				IsAddition: mod.IsAddition,
				Stack:      toStackFrameViews(mod.Stack),
			})
		}
		containerViews = append(containerViews, exportContainerView{
			ContainerID:   s.ids.idFor(snap.Container),
			Modifications: mods,
		})
	}

	export := map[string]any{"fields": fieldViews, "containers": containerViews}
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		s.log.WithError(err).Error("server: failed to stream export body")
	}
}
