// File: internal/common/validation.go
package common

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"lifelink_backend/internal/domain"
)

// RegisterValidations adds the project's custom tags to v.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
		return domain.BloodGroup(fl.Field().String()).Valid()
	})
}

// RegisterGinValidations adds the custom tags to gin's binding validator.
func RegisterGinValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	return RegisterValidations(v)
}

// NewValidator returns a validator with the custom tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// ValidateStruct runs v over s and converts field failures into a
// validation APIError.
func ValidateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return NewValidationAPIError(FormatValidationErrors(ve))
	}
	return ErrBadRequest.WithDetails(err.Error())
}
