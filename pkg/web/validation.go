package web

import (
	"github.com/flowmark/journey/pkg/models"
	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the "cron" tag registered. The tag accepts
// five-field expressions whose fields are "*", "*/N" or a number in range.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	// RegisterValidation only fails for an empty tag or a nil function.
	_ = validate.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return models.ValidateCronExpression(fl.Field().String()) == nil
	})

	return validate
}
