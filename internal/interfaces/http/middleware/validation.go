package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/tffhost/backend/internal/domain/hosting"
	"github.com/tffhost/backend/internal/domain/investment"
	"github.com/tffhost/backend/internal/domain/profile"
	"github.com/tffhost/backend/internal/interfaces/http/dto"
)

// SetupValidator configures the gin validator: JSON names in errors and the status
// tags of the request DTOs.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
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
	return RegisterStatusValidators(v)
}

// RegisterStatusValidators registers kyc_status, order_status and agreement_status
func RegisterStatusValidators(v *validator.Validate) error {
	validators := map[string]func(int) bool{
		"kyc_status":       func(s int) bool { return profile.KYCStatus(s).IsValid() },
		"order_status":     func(s int) bool { return hosting.OrderStatus(s).IsValid() },
		"agreement_status": func(s int) bool { return investment.AgreementStatus(s).IsValid() },
	}
	for tag, valid := range validators {
		if err := v.RegisterValidation(tag, intValidator(valid)); err != nil {
			return err
		}
	}
	return nil
}

func intValidator(valid func(int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		field := fl.Field()
		switch field.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return valid(int(field.Int()))
		default:
			return false
		}
	}
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a validation error response. Malformed JSON is
// reported without field details.
func HandleValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeInvalidJSON, "Request body is not valid", GetRequestID(c)))
		return
	}
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "required_if":
		return "This field is required when " + e.Param()
	case "email":
		return "Invalid email format"
	case "min":
		if e.Type().Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Type().Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "uuid":
		return "Invalid UUID format"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "kyc_status":
		return "Unknown KYC status"
	case "order_status":
		return "Unknown order status"
	case "agreement_status":
		return "Unknown agreement status"
	default:
		return "Invalid value"
	}
}
