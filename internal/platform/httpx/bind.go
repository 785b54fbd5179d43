package httpx

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationErrors maps request field names to failed rules.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for field, rule := range v {
		fields = append(fields, field+" "+rule)
	}
	sort.Strings(fields)
	return "validation: " + strings.Join(fields, ", ")
}

func (v ValidationErrors) Is(target error) bool { return target == shared.ErrValidation }

// Bind decodes the JSON body into dst and validates its struct tags.
func Bind(r *http.Request, dst any) error {
	if err := DecodeJSON(r, dst); err != nil {
		return shared.Invalid("body", "must be valid JSON: "+err.Error())
	}
	return Validate(dst)
}

// Validate runs struct tag validation on dst.
func Validate(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.Invalid("body", err.Error())
	}
	out := make(ValidationErrors, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		out[fe.Field()] = rule
	}
	return out
}
