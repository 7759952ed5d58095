// Package respond writes the JSON envelope every API route uses:
// success bodies carry "success": true, failures {success:false, error, details?}.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK writes a 200 with success:true merged into body.
func OK(c *gin.Context, body gin.H) {
	JSON(c, http.StatusOK, body)
}

// JSON writes status with success:true merged into body.
func JSON(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

// Error aborts the request with the failure envelope.
func Error(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
	})
}

// ErrorWithDetails is Error plus a diagnostic detail string.
// Details must never contain secrets.
func ErrorWithDetails(c *gin.Context, status int, message string, details any) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"details": details,
	})
}

// Unauthenticated is the generic 401 body.
func Unauthenticated(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

// BadRequest is a 400 with a field-specific message.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// Internal is a 500 with a generic user message and the error as details.
func Internal(c *gin.Context, message string, err error) {
	if err == nil {
		Error(c, http.StatusInternalServerError, message)
		return
	}
	ErrorWithDetails(c, http.StatusInternalServerError, message, err.Error())
}
