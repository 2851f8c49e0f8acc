package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary Health check
// @Tags network
// @Produce plain
// @Success 200 {string} string "pong"
// @Router /ping [get]
func Ping(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}
