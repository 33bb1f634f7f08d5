// Package validation содержит проверки входных данных HTTP-запросов.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError описывает нарушение правила для одного поля запроса.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error реализует интерфейс error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Rule)
}

// Errors объединяет нарушения нескольких полей.
type Errors []FieldError

// Error реализует интерфейс error.
func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Error())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Struct проверяет структуру по тегам validate и возвращает Errors при нарушениях.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	res := make(Errors, 0, len(verrs))
	for _, fe := range verrs {
		res = append(res, FieldError{Field: jsonName(fe.Field()), Rule: fe.Tag()})
	}
	return res
}

func jsonName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
