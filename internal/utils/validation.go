package utils

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/models"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// Validator returns the shared validator. Field names in errors use the
// json tag and messages are translated to English.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)

		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
		if err := entranslations.RegisterDefaultTranslations(validate, translator); err != nil {
			panic(err)
		}

		registerRule("attendance_status", "{0} must be one of present, absent, excused or late", func(fl validator.FieldLevel) bool {
			_, ok := models.ParseAttendanceStatus(fl.Field().String())
			return ok
		})
		registerRule("role", "{0} must be one of instructor, aprendiz or admin", func(fl validator.FieldLevel) bool {
			_, ok := authz.ParseRole(fl.Field().String())
			return ok
		})
	})
	return validate
}

// IsValidationError reports whether err came from struct validation.
func IsValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// ValidationMessages flattens a validation error into readable messages. Any
// other error yields its own text as the single message.
func ValidationMessages(err error) []string {
	if err == nil {
		return nil
	}

	Validator()

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fieldErr.Translate(translator))
	}
	return messages
}

func registerRule(tag, message string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
	_ = validate.RegisterTranslation(tag, translator,
		func(t ut.Translator) error {
			return t.Add(tag, message, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			text, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return text
		},
	)
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
