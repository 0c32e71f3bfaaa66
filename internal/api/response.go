package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Success writes data as a 200 JSON response.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// InternalError writes err as a 500 JSON response.
func InternalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: err.Error()})
}

// NotFound writes a 404 JSON response.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: message})
}
