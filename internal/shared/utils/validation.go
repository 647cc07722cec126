package utils

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// JSON size limits (in bytes)
const (
	MaxJSONSize    = 1 * 1024 * 1024 // request bodies
	MaxMapSize     = 64 * 1024       // free-form maps (metadata, ai_context, preferences)
	MaxMapDepth    = 10
	MaxMessageSize = 16 * 1024
)

// String length limits
const (
	MaxUsernameLength    = 64
	MinUsernameLength    = 3
	MaxPasswordLength    = 128
	MinPasswordLength    = 8
	MaxEmailLength       = 255
	MaxIDLength          = 128
	MaxNameLength        = 256
	MaxDescriptionLength = 2048
	MaxCategoryLength    = 64
	MaxURLLength         = 4096
	MaxSelectorLength    = 1024
	MaxValueLength       = 8192
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// UsernamePattern allows alphanumeric and underscores
	UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	// EmailPattern is a basic email validation
	EmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// CategoryPattern allows lowercase letters, numbers, hyphens
	CategoryPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Invalid builds a ValidationError with a formatted message.
func Invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return Invalid(fieldName, "is required")
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return Invalid(fieldName, "must be at least %d characters", minLen)
	}
	if length > maxLen {
		return Invalid(fieldName, "must not exceed %d characters", maxLen)
	}

	// Null bytes never belong in stored strings
	if strings.Contains(value, "\x00") {
		return Invalid(fieldName, "contains invalid characters")
	}

	return nil
}

// ValidateID validates an ID path or body parameter
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return Invalid(fieldName, "contains invalid characters (only alphanumeric, hyphens, and underscores allowed)")
	}

	return nil
}

// ValidateUsername validates a username
func ValidateUsername(username string) error {
	if err := ValidateString(username, "username", MinUsernameLength, MaxUsernameLength, true); err != nil {
		return err
	}

	if !UsernamePattern.MatchString(username) {
		return Invalid("username", "contains invalid characters (only alphanumeric and underscores allowed)")
	}

	return nil
}

// ValidatePassword validates a password
func ValidatePassword(password string) error {
	return ValidateString(password, "password", MinPasswordLength, MaxPasswordLength, true)
}

// ValidateEmail validates an email address
func ValidateEmail(email string, required bool) error {
	if err := ValidateString(email, "email", 0, MaxEmailLength, required); err != nil {
		return err
	}

	if email != "" && !EmailPattern.MatchString(email) {
		return Invalid("email", "has an invalid format")
	}

	return nil
}

// ValidateName validates a name field
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateDescription validates a description field
func ValidateDescription(description, fieldName string, required bool) error {
	return ValidateString(description, fieldName, 0, MaxDescriptionLength, required)
}

// ValidateCategory validates a category label
func ValidateCategory(category string, required bool) error {
	if err := ValidateString(category, "category", 0, MaxCategoryLength, required); err != nil {
		return err
	}

	if category != "" && !CategoryPattern.MatchString(category) {
		return Invalid("category", "must contain only lowercase letters, numbers, and hyphens")
	}

	return nil
}

// ValidateURL validates an absolute http(s) URL.
// about:blank is accepted so new tabs can start empty.
func ValidateURL(raw, fieldName string, required bool) error {
	if err := ValidateString(raw, fieldName, 1, MaxURLLength, required); err != nil {
		return err
	}
	if raw == "" || raw == "about:blank" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Invalid(fieldName, "is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Invalid(fieldName, "must use http or https")
	}
	if u.Host == "" {
		return Invalid(fieldName, "must include a host")
	}

	return nil
}

// ValidateCoordinate rejects NaN and infinite positions
func ValidateCoordinate(v float64, fieldName string) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Invalid(fieldName, "must be a finite number")
	}
	return nil
}

// ValidateMessage validates a chat message or prompt
func ValidateMessage(message string) error {
	if err := ValidateString(strings.TrimSpace(message), "message", 1, MaxMessageSize, true); err != nil {
		return err
	}

	whitespace := 0
	for _, r := range message {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			whitespace++
		}
	}
	if whitespace > len(message)/2 {
		return Invalid("message", "contains excessive whitespace")
	}

	return nil
}

// ValidateMap bounds the encoded size and nesting depth of a free-form map
func ValidateMap(m map[string]interface{}, fieldName string) error {
	if len(m) == 0 {
		return nil
	}

	data, err := sonic.ConfigStd.Marshal(m)
	if err != nil {
		return Invalid(fieldName, "is not JSON-serializable")
	}
	if len(data) > MaxMapSize {
		return Invalid(fieldName, "exceeds maximum size of %d bytes", MaxMapSize)
	}
	if err := checkDepth(m, 0, MaxMapDepth); err != nil {
		return Invalid(fieldName, "%s", err.Error())
	}

	return nil
}

func checkDepth(data interface{}, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("nesting depth exceeds maximum %d", maxDepth)
	}

	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}
