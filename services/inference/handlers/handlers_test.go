// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBayes/services/bayes/store"
	"github.com/AleutianAI/AleutianBayes/services/inference/datatypes"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

const burglaryYAML = `
name: burglary
variables:
  - name: Burglary
    domain: ["True", "False"]
  - name: Earthquake
    domain: ["True", "False"]
  - name: Alarm
    domain: ["True", "False"]
  - name: JohnCalls
    domain: ["True", "False"]
  - name: MaryCalls
    domain: ["True", "False"]
nodes:
  - variable: Burglary
    table: [0.01, 0.99]
  - variable: Earthquake
    table: [0.02, 0.98]
  - variable: Alarm
    parents: [Burglary, Earthquake]
    table: [0.95, 0.05, 0.94, 0.06, 0.29, 0.71, 0.001, 0.999]
  - variable: JohnCalls
    parents: [Alarm]
    table: [0.90, 0.10, 0.05, 0.95]
  - variable: MaryCalls
    parents: [Alarm]
    table: [0.70, 0.30, 0.01, 0.99]
`

// newTestRouter builds a router over an in-memory store. Metrics are nil so
// tests do not trip duplicate Prometheus registration.
func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	router := gin.New()
	v1 := router.Group("/v1")
	networks := v1.Group("/networks")
	networks.POST("", CreateNetwork(s, nil))
	networks.GET("", ListNetworks(s))
	networks.GET("/:name", GetNetwork(s))
	networks.DELETE("/:name", DeleteNetwork(s, nil))
	networks.POST("/:name/query/map", HandleMAPQuery(s, nil))
	networks.POST("/:name/query/marginal", HandleMarginalQuery(s, nil))
	router.GET("/health", HealthCheck)
	return router, s
}

func putBurglary(t *testing.T, router *gin.Engine) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/networks", strings.NewReader(burglaryYAML))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateNetwork_RejectsMalformed(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/networks", strings.NewReader("name: [broken"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestNetworkLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)
	putBurglary(t, router)

	// List
	req := httptest.NewRequest(http.MethodGet, "/v1/networks", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "burglary")

	// Get
	req = httptest.NewRequest(http.MethodGet, "/v1/networks/burglary", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var summary datatypes.NetworkSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "burglary", summary.Name)
	assert.Len(t, summary.Variables, 5)

	// Delete
	req = httptest.NewRequest(http.MethodDelete, "/v1/networks/burglary", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Gone
	req = httptest.NewRequest(http.MethodGet, "/v1/networks/burglary", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleMAPQuery_Golden(t *testing.T) {
	router, _ := newTestRouter(t)
	putBurglary(t, router)

	w := postJSON(t, router, "/v1/networks/burglary/query/map", datatypes.MAPQueryRequest{
		MapVariables: []string{"MaryCalls", "JohnCalls", "Burglary", "Earthquake"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.MAPQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.QueryID)
	assert.Equal(t, "burglary", resp.Network)
	assert.InDelta(t, 0.91158974, resp.Probability, 1e-6)
	assert.Equal(t, "False", resp.Assignment["Burglary"])
	assert.Equal(t, "False", resp.Assignment["MaryCalls"])
}

func TestHandleMAPQuery_ErrorMapping(t *testing.T) {
	router, _ := newTestRouter(t)
	putBurglary(t, router)

	// Unknown network -> 404
	w := postJSON(t, router, "/v1/networks/nonexistent/query/map", datatypes.MAPQueryRequest{
		MapVariables: []string{"Burglary"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unknown variable -> 400
	w = postJSON(t, router, "/v1/networks/burglary/query/map", datatypes.MAPQueryRequest{
		MapVariables: []string{"Tornado"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Variable both query and evidence -> 400
	w = postJSON(t, router, "/v1/networks/burglary/query/map", datatypes.MAPQueryRequest{
		MapVariables: []string{"Burglary"},
		Evidence:     map[string]string{"Burglary": "True"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Empty query set fails request validation -> 400
	w = postJSON(t, router, "/v1/networks/burglary/query/map", datatypes.MAPQueryRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Malformed body -> 400
	req := httptest.NewRequest(http.MethodPost, "/v1/networks/burglary/query/map",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleMarginalQuery_Posterior(t *testing.T) {
	router, _ := newTestRouter(t)
	putBurglary(t, router)

	w := postJSON(t, router, "/v1/networks/burglary/query/marginal", datatypes.MarginalQueryRequest{
		Retain:    []string{"Burglary"},
		Evidence:  map[string]string{"JohnCalls": "True", "MaryCalls": "True"},
		Normalize: true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.MarginalQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Normalized)
	require.Len(t, resp.Entries, 2)

	// Canonical enumeration: True row first. Priors here are .01/.02, so
	// the posterior differs from the classic .001/.002 figure.
	assert.Equal(t, "True", resp.Entries[0].Assignment["Burglary"])
	total := resp.Entries[0].Probability + resp.Entries[1].Probability
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestHandleMarginalQuery_EmptyRetain(t *testing.T) {
	router, _ := newTestRouter(t)
	putBurglary(t, router)

	w := postJSON(t, router, "/v1/networks/burglary/query/marginal",
		datatypes.MarginalQueryRequest{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp datatypes.MarginalQueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.InDelta(t, 1.0, resp.Entries[0].Probability, 1e-6)
}

func TestGetNetwork_RejectsBadIdentifier(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/networks/bad%20name", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
