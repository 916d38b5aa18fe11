package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// ledgerRef is the shape of a client posting reference. References are
// idempotency keys, so whitespace and control characters are refused
// rather than silently trimmed.
var ledgerRef = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:=\-]*$`)

var setupOnce sync.Once

// SetupValidator names binding errors by json/form tag and registers the
// ledger_ref rule. Safe to call more than once.
func SetupValidator() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("ledger_ref", func(fl validator.FieldLevel) bool {
			return ledgerRef.MatchString(fl.Field().String())
		})
	})
}

func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		switch name, _, _ := strings.Cut(fld.Tag.Get(tag), ","); name {
		case "-":
			return ""
		case "":
		default:
			return name
		}
	}
	return fld.Name
}

// FormatValidationErrors builds the 400 body. A decode error (bad JSON)
// is reported against "body".
func FormatValidationErrors(err error, requestID string) dto.Response {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return dto.NewValidationErrorResponse("Request validation failed", requestID,
			[]dto.ValidationDetail{{Field: "body", Message: err.Error()}})
	}
	details := make([]dto.ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, dto.ValidationDetail{Field: e.Field(), Message: ruleMessage(e)})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func ruleMessage(e validator.FieldError) string {
	unit := ""
	if e.Kind() == reflect.String {
		unit = " characters"
	}
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "ledger_ref":
		return "Use letters, digits and . _ : = - only"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + unit
	case "min":
		return "Must be at least " + e.Param() + unit
	case "max":
		return "Must be at most " + e.Param() + unit
	}
	return "Invalid value"
}
