// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianBayes/services/bayes/store"
	"github.com/AleutianAI/AleutianBayes/services/inference/handlers"
	"github.com/AleutianAI/AleutianBayes/services/inference/observability"
)

func SetupRoutes(router *gin.Engine, s *store.Store, metrics *observability.QueryMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		networks := v1.Group("/networks")
		{
			networks.POST("", handlers.CreateNetwork(s, metrics))
			networks.GET("", handlers.ListNetworks(s))
			networks.GET("/:name", handlers.GetNetwork(s))
			networks.DELETE("/:name", handlers.DeleteNetwork(s, metrics))
			networks.POST("/:name/query/map", handlers.HandleMAPQuery(s, metrics))
			networks.POST("/:name/query/marginal", handlers.HandleMarginalQuery(s, metrics))
		}
	}
}
