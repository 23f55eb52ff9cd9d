package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/clinicdesk/backend/internal/domain/cashdesk"
	"github.com/clinicdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// SetupValidator reports fields by their JSON names and registers the cash desk tags.
// It must run before the first request is bound.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding validator is not go-playground/validator")
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})
	return RegisterCashdeskValidators(v)
}

// RegisterCashdeskValidators adds cashdesk_category, payment_method and incident_kind
func RegisterCashdeskValidators(v *validator.Validate) error {
	validators := map[string]validator.Func{
		"cashdesk_category": func(fl validator.FieldLevel) bool {
			_, ok := cashdesk.KindOfCategory(cashdesk.Category(fl.Field().String()))
			return ok
		},
		"payment_method": func(fl validator.FieldLevel) bool {
			return cashdesk.PaymentMethod(fl.Field().String()).IsValid()
		},
		"incident_kind": func(fl validator.FieldLevel) bool {
			return cashdesk.IncidentKind(fl.Field().String()).IsValid()
		},
	}
	for tag, fn := range validators {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// ValidationDetails converts binding errors into per-field details.
// Errors that are not validation errors (malformed JSON) yield nil.
func ValidationDetails(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{
			Field:   e.Field(),
			Message: validationMessage(e),
		})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "min":
		return "Must be at least " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "cashdesk_category":
		return "Unknown category"
	case "payment_method":
		return "Unsupported payment method"
	case "incident_kind":
		return "Unknown incident kind"
	}
	return "Invalid value"
}
