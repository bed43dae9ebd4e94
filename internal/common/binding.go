// File: internal/common/binding.go
package common

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON decodes the request body into obj and maps binding failures to
// API errors.
func BindJSON(c *gin.Context, obj interface{}) error {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return NewValidationAPIError(FormatValidationErrors(ve))
	}
	return ErrBadRequest.WithDetails("Invalid request body: " + err.Error())
}
