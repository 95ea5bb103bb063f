package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/pmscanauth/password"
)

const (
	maxBodyBytes = 10 << 20

	passwordPolicyMessage = "Password must contain at least 8 characters, 1 uppercase letter, 1 lowercase letter, 1 digit and 1 special character"
)

var (
	deviceNamePattern = regexp.MustCompile(`^PMScan\d{6}$`)
	macPattern        = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("pmpassword", func(fl validator.FieldLevel) bool {
		return password.CheckPolicy(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("pmscanname", func(fl validator.FieldLevel) bool {
		return deviceNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pmscanmac", func(fl validator.FieldLevel) bool {
		return macPattern.MatchString(fl.Field().String())
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &requestError{status: http.StatusRequestEntityTooLarge, message: "Request body too large"}
		case errors.Is(err, io.EOF):
			return badRequest("Request body is required")
		default:
			return badRequest("Invalid JSON body")
		}
	}
	if err := a.validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return badRequest("Invalid request")
	}
	fe := fieldErrs[0]
	return badRequest(fieldMessage(fe))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "base64":
		return field + " must be base64 encoded"
	case "pmpassword":
		return passwordPolicyMessage
	case "pmscanname":
		return `deviceName must start with "PMScan" followed by 6 digits`
	case "pmscanmac":
		return "deviceId must be in the format XX:XX:XX:XX:XX:XX where X is a hexadecimal digit"
	}
	return field + " is invalid"
}
