package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldResumeOwner is the structured log field key for the resume owner id.
	FieldResumeOwner = "resume_owner"
	// FieldResumeFingerprint is the structured log field key for the resume content hash.
	FieldResumeFingerprint = "resume_fingerprint"
	// FieldJobPosting is the structured log field key for a job posting id.
	FieldJobPosting = "job_posting_id"

	fingerprintLogLength = 12
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// MatchFields returns the fields identifying a matching request.
// The fingerprint is shortened to its first 12 characters.
func MatchFields(ownerID, fingerprint string) []zap.Field {
	fp := strings.TrimSpace(fingerprint)
	if len(fp) > fingerprintLogLength {
		fp = fp[:fingerprintLogLength]
	}

	return StringFields(
		StringField{Key: FieldResumeOwner, Value: ownerID},
		StringField{Key: FieldResumeFingerprint, Value: fp},
	)
}

// WithMatchFields attaches the request fields to the provided logger.
func WithMatchFields(logger *zap.Logger, ownerID, fingerprint string) *zap.Logger {
	return WithFields(logger, MatchFields(ownerID, fingerprint)...)
}
