// Package validation - проверка и очистка текста, который присылает клиент.
package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxDescriptionLength = 500
	MaxSearchQueryLength = 200
)

// ValidateLength проверяет длину строки в символах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Validation("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return apperror.Validation("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// CleanText убирает управляющие символы (кроме перевода строки) и пробелы по краям.
func CleanText(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(cleaned)
}

// ValidateDescription очищает описание отчёта. Пустое описание превращается в nil.
func ValidateDescription(description *string) (*string, error) {
	if description == nil {
		return nil, nil
	}

	cleaned := CleanText(*description)
	if cleaned == "" {
		return nil, nil
	}
	if err := ValidateLength("описание", cleaned, 0, MaxDescriptionLength); err != nil {
		return nil, err
	}
	return &cleaned, nil
}

// ValidateSearchQuery очищает текст поиска места.
func ValidateSearchQuery(query string) (string, error) {
	cleaned := strings.Join(strings.Fields(CleanText(query)), " ")
	if err := ValidateLength("запрос", cleaned, 0, MaxSearchQueryLength); err != nil {
		return "", err
	}
	return cleaned, nil
}
