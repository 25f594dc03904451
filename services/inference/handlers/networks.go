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
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianBayes/pkg/validation"
	"github.com/AleutianAI/AleutianBayes/services/bayes"
	"github.com/AleutianAI/AleutianBayes/services/bayes/loader"
	"github.com/AleutianAI/AleutianBayes/services/bayes/store"
	"github.com/AleutianAI/AleutianBayes/services/inference/datatypes"
	"github.com/AleutianAI/AleutianBayes/services/inference/observability"
)

// CreateNetwork stores the YAML network definition in the request body.
// The network is keyed by the name declared inside the document.
func CreateNetwork(s *store.Store, metrics *observability.QueryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, loader.MaxFileBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read request body"})
			return
		}

		net, err := s.Put(c.Request.Context(), body)
		if err != nil {
			if errors.Is(err, bayes.ErrMalformedNetwork) {
				slog.Warn("rejected network definition", "error", err)
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			slog.Error("failed to store network", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store network"})
			return
		}

		updateNetworkGauge(c, s, metrics)
		c.JSON(http.StatusCreated, summarize(net))
	}
}

// ListNetworks returns the names of all stored networks, sorted.
func ListNetworks(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := s.List(c.Request.Context())
		if err != nil {
			slog.Error("failed to list networks", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list networks"})
			return
		}
		sort.Strings(names)
		c.JSON(http.StatusOK, gin.H{"networks": names})
	}
}

// GetNetwork returns a summary of one stored network.
func GetNetwork(s *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := validation.ValidateIdentifier(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		net, err := s.Get(c.Request.Context(), name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "network not found"})
				return
			}
			slog.Error("failed to get network", "network", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get network"})
			return
		}
		c.JSON(http.StatusOK, summarize(net))
	}
}

// DeleteNetwork removes one stored network.
func DeleteNetwork(s *store.Store, metrics *observability.QueryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := validation.ValidateIdentifier(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.Delete(c.Request.Context(), name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "network not found"})
				return
			}
			slog.Error("failed to delete network", "network", name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete network"})
			return
		}

		updateNetworkGauge(c, s, metrics)
		c.JSON(http.StatusOK, gin.H{"status": "success", "deleted_network": name})
	}
}

func summarize(net *bayes.Network) datatypes.NetworkSummary {
	vars := net.Variables()
	summary := datatypes.NetworkSummary{
		Name:      net.Name(),
		Variables: make([]datatypes.VariableSummary, 0, len(vars)),
	}
	for _, v := range vars {
		summary.Variables = append(summary.Variables, datatypes.VariableSummary{
			Name:   v.Name,
			Domain: v.Domain,
		})
	}
	return summary
}

func updateNetworkGauge(c *gin.Context, s *store.Store, metrics *observability.QueryMetrics) {
	if metrics == nil {
		return
	}
	if names, err := s.List(c.Request.Context()); err == nil {
		metrics.SetStoredNetworks(len(names))
	}
}
