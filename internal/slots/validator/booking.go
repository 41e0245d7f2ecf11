package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Fields maps field name to message, the shape returned in error details.
func (v ValidationErrors) Fields() map[string]any {
	out := make(map[string]any, len(v))
	for _, err := range v {
		out[err.Field] = err.Message
	}
	return out
}

type BookingValidator struct {
	validate *validator.Validate
	now      func() time.Time
	loc      *time.Location
}

// NewBookingValidator builds the validator for slot store requests. now and
// loc decide what "today" is for onset dates.
func NewBookingValidator(log *logger.Logger, now func() time.Time, loc *time.Location) *BookingValidator {
	if loc == nil {
		loc = time.UTC
	}
	bv := &BookingValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      now,
		loc:      loc,
	}

	bv.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	if err := bv.validate.RegisterValidation("not_blank", validateNotBlank); err != nil {
		log.Fatal("Failed to register 'not_blank' validator", "error", err)
	}
	if err := bv.validate.RegisterValidation("not_future_date", bv.validateNotFutureDate); err != nil {
		log.Fatal("Failed to register 'not_future_date' validator", "error", err)
	}

	log.Info("Booking validator initialized successfully")
	return bv
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func (v *BookingValidator) validateNotFutureDate(fl validator.FieldLevel) bool {
	date := fl.Field().String()
	if date == "" {
		return true
	}
	if _, err := model.ParseDate(date, v.loc); err != nil {
		return false
	}
	return date <= model.Today(v.now(), v.loc)
}

func (v *BookingValidator) ValidateDetails(details *model.BookingDetails) error {
	return v.Struct(details)
}

// Struct validates any request type carrying validate tags.
func (v *BookingValidator) Struct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := fieldPath(err)
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "not_blank":
			message = fmt.Sprintf("%s cannot be empty", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", field, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", field, err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
		case "not_future_date":
			message = fmt.Sprintf("%s cannot be in the future", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

// fieldPath drops the top-level struct name from the namespace so nested
// fields read as chief_complaint.pain_scale.
func fieldPath(err validator.FieldError) string {
	ns := err.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return err.Field()
}
