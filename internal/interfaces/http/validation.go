package http

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/paydesk/settlement-engine/pkg/utils"
)

var setupOnce sync.Once

// SetupValidator registers the custom binding rules and reports json field
// names in validation errors
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
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
		_ = v.RegisterValidation("period", validatePeriod)
	})
}

// validatePeriod accepts payroll periods written as YYYY-MM
func validatePeriod(fl validator.FieldLevel) bool {
	return utils.IsPeriod(fl.Field().String())
}

// validationDetails flattens binding errors into field -> message
func validationDetails(err error) map[string]interface{} {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	details := make(map[string]interface{}, len(errs))
	for _, e := range errs {
		details[e.Field()] = validationMessage(e)
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "period":
		return "Must be a period in YYYY-MM format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "min":
		return "Must contain at least " + e.Param() + " items"
	default:
		return "Invalid value"
	}
}
