package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// Security limits and configuration
const (
	// MaxJobTypeNameLength is the maximum length for job type names
	MaxJobTypeNameLength = 255

	// MaxKeyNameLength is the maximum length of a job or trigger name or group
	MaxKeyNameLength = 200

	// MaxJobDataSize is the maximum encoded size of a job's data map (64KB)
	MaxJobDataSize = 64 << 10

	// MaxConcurrency is the hard limit for parallel fires
	MaxConcurrency = 1000

	// MaxBatchSize is the hard limit for triggers examined per tick
	MaxBatchSize = 10000

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096
)

// validJobTypeName matches alphanumeric, hyphens, underscores, and dots
var validJobTypeName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateJobTypeName validates a job type name
func ValidateJobTypeName(name string) error {
	if name == "" {
		return core.ErrInvalidName
	}
	if len(name) > MaxJobTypeNameLength {
		return core.ErrNameTooLong
	}
	if !validJobTypeName.MatchString(name) {
		return core.ErrInvalidName
	}
	return nil
}

// ValidateKeyName checks one half of a job or trigger key. Names may hold
// any printable text, including spaces, but not be blank.
func ValidateKeyName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return core.Invalid(field, "must not be blank")
	}
	if utf8.RuneCountInString(name) > MaxKeyNameLength {
		return core.InvalidErr(field, core.ErrNameTooLong)
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return core.Invalid(field, fmt.Sprintf("contains non-printable character %U", r))
		}
	}
	return nil
}

// ValidateJobKey validates both halves of a job key.
func ValidateJobKey(k core.JobKey) error {
	if err := ValidateKeyName("jobName", k.Name); err != nil {
		return err
	}
	return ValidateKeyName("jobGroup", k.Group)
}

// ValidateTriggerKey validates both halves of a trigger key.
func ValidateTriggerKey(k core.TriggerKey) error {
	if err := ValidateKeyName("triggerName", k.Name); err != nil {
		return err
	}
	return ValidateKeyName("triggerGroup", k.Group)
}

// ValidateJobData bounds the size of a job's data map.
func ValidateJobData(data map[string]string) error {
	size := 0
	for k, v := range data {
		size += len(k) + len(v)
	}
	if size > MaxJobDataSize {
		return core.InvalidErr("data", core.ErrJobDataTooLarge)
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampConcurrency ensures concurrency is within limits
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}

// ClampBatchSize ensures the per-tick batch is within limits
func ClampBatchSize(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxBatchSize {
		return MaxBatchSize
	}
	return n
}
