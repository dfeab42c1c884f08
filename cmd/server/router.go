// List of all REST API endpoints exposed by sporthub.

package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sporthub/internal/edge"
)

func Router(router *gin.Engine, deps edge.Deps) {
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "sporthub is running")
	})

	edge.RegisterRoutes(router, deps)
}
