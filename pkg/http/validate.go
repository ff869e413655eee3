package http

import (
	"errors"
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ReadAndValidateRequest binds path, query and body into req, fills struct
// defaults and validates. It returns nil when req is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return bindErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return bindErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return bindErrors(err)
	}
	return nil
}

func bindErrors(err error) []ValidationError {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		out := make([]ValidationError, 0, len(fields))
		for _, fe := range fields {
			out = append(out, fieldError(fe))
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

// rule messages take the field name and the tag parameter.
var ruleMessages = map[string]string{
	"required": "%s is required",
	"oneof":    "%s must be one of: %s",
	"uuid":     "%s must be a UUID",
	"min":      "%s must be at least %s",
	"gte":      "%s must be at least %s",
	"max":      "%s must be at most %s",
	"lte":      "%s must be at most %s",
	"gt":       "%s must be greater than %s",
	"lt":       "%s must be less than %s",
}

func fieldError(fe validator.FieldError) ValidationError {
	param := fe.Param()
	ve := ValidationError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: fe.Field(),
	}

	switch fe.Tag() {
	case "oneof":
		opts := strings.Fields(param)
		param = strings.Join(opts, ", ")
		ve.Params = map[string]interface{}{"options": opts}
	case "min", "gte":
		ve.Params = map[string]interface{}{"min": param}
	case "max", "lte":
		ve.Params = map[string]interface{}{"max": param}
	case "gt", "lt":
		ve.Params = map[string]interface{}{"value": param}
	}

	if tmpl, ok := ruleMessages[fe.Tag()]; ok {
		if strings.Count(tmpl, "%s") == 2 {
			ve.Message = fmt.Sprintf(tmpl, fe.Field(), param)
		} else {
			ve.Message = fmt.Sprintf(tmpl, fe.Field())
		}
	} else {
		ve.Message = fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
	return ve
}
