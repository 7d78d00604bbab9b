package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fieldwatch-agent/internal/config"
	"fieldwatch-agent/pkg/agentruntime"
	"fieldwatch-agent/pkg/catalog"
	"fieldwatch-agent/pkg/historystore"
)

func newTestServer(t *testing.T) (*Server, *agentruntime.Runtime) {
	t.Helper()
	rt := agentruntime.New(catalog.New(), historystore.New())
	s := New(config.ServerConfig{Enabled: true, Host: "127.0.0.1", Port: 0}, rt, logrus.New(), nil)
	return s, rt
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleSetTracking_EnablesLocator(t *testing.T) {
	s, rt := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/tracking", trackingRequest{Class: "Foo", Field: "items", Enabled: true})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, rt.History().IsActive(historystore.FieldLocator{Class: "Foo", Field: "items"}))
}

func TestHandleSetTracking_RejectsMissingFields(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/v1/tracking", trackingRequest{Enabled: true})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClearHistory_ClearsLocator(t *testing.T) {
	s, rt := newTestServer(t)
	locator := historystore.FieldLocator{Class: "Foo", Field: "items"}
	rt.History().SetTrackingEnabled(locator, true)
	rt.History().AppendFieldModification(locator, historystore.FieldModification{})

	rec := doRequest(t, s, http.MethodDelete, "/v1/history?class=Foo&field=items", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rt.History().GetFieldModifications(locator))
}

func TestHandleFieldModifications_ReturnsAppendedEntries(t *testing.T) {
	s, rt := newTestServer(t)
	locator := historystore.FieldLocator{Class: "Foo", Field: "items"}
	rt.History().SetTrackingEnabled(locator, true)
	rt.History().AppendFieldModification(locator, historystore.FieldModification{})

	rec := doRequest(t, s, http.MethodGet, "/v1/fields/modifications?class=Foo&field=items", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out []fieldModificationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
}

func TestHandleContainerModifications_UnknownIDReturns404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/containers/does-not-exist/modifications", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleKnownMethods_ListsKnownTypes(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/known-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var types []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	require.Contains(t, types, "fieldwatch-agent/pkg/watched.List")
}

func TestHandleKnownMethods_SpecificType(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/v1/known-methods?type=fieldwatch-agent/pkg/watched.List", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var methods map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &methods))
	require.Equal(t, "documented", methods["Add"])
}

func TestHandleExport_GzipEncodesFullHistory(t *testing.T) {
	s, rt := newTestServer(t)
	locator := historystore.FieldLocator{Class: "Foo", Field: "items"}
	rt.History().SetTrackingEnabled(locator, true)
	rt.History().AppendFieldModification(locator, historystore.FieldModification{})

	rec := doRequest(t, s, http.MethodGet, "/v1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	defer gz.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(gz).Decode(&out))
	fields, ok := out["fields"].([]any)
	require.True(t, ok)
	require.Len(t, fields, 1)
}
