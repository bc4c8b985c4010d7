package core

// # Error Codes Reference
//
// Codes are grouped by category. Support staff can look a code up here.
//
// # Validation (VAL001-VAL099)
//
//	VAL001 - Data does not match the schema
//	         Action: Fix the listed rows and validate again
//	VAL002 - Required column is missing from the header
//	         Action: Add the column or check the header row setting
//
// # Schema (SCH001-SCH099)
//
//	SCH001 - Unknown resource type
//	         Action: Use one of the types listed by /api/resources
//	SCH002 - Schema could not be loaded for a known type
//	         Action: Check the schema override directory
//	SCH003 - Schema definition is invalid
//	         Action: Fix the schema file named in the logs
//
// # File (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Not a readable CSV
//	FILE003 - Input missing or malformed
//	FILE004 - File or URL could not be opened
//
// # Request (REQ001-REQ099)
//
//	REQ001 - Too many validations in progress
//	REQ002 - Request cancelled
//	REQ003 - Request timed out
//	REQ004 - Validation history is not enabled
//	         Action: Set DATABASE_URL to keep run history
//	REQ005 - Rate limit exceeded (issued by the web layer)
//
// # Default (ERR000)
//
//	ERR000 - Unexpected error; check application logs
//
// Typed errors are matched first with errors.Is / errors.As. Anything else
// falls back to case-insensitive substring patterns; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/hsds-validator/internal/resources"
	"github.com/JonMunkholm/hsds-validator/internal/tableschema"
	"github.com/JonMunkholm/hsds-validator/internal/validator"
)

// ErrFileTooLarge is returned when an upload exceeds the configured size.
var ErrFileTooLarge = errors.New("file too large")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var (
	msgDataInvalid = UserMessage{
		Message: "The data does not match the resource schema",
		Action:  "Fix the listed rows and validate again",
		Code:    "VAL001",
	}
	msgMissingColumn = UserMessage{
		Message: "A required column is missing from the header",
		Action:  "Add the column or check the header row setting",
		Code:    "VAL002",
	}
	msgUnknownType = UserMessage{
		Message: "Unknown resource type",
		Action:  "Use one of the types listed by /api/resources",
		Code:    "SCH001",
	}
	msgSchemaUnavailable = UserMessage{
		Message: "The schema for this resource type could not be loaded",
		Action:  "Check the schema override directory",
		Code:    "SCH002",
	}
	msgSchemaInvalid = UserMessage{
		Message: "The schema definition is invalid",
		Action:  "Fix the schema file named in the logs",
		Code:    "SCH003",
	}
	msgTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}
	msgBadCSV = UserMessage{
		Message: "The file is not a readable CSV",
		Action:  "Ensure the file is comma-separated with properly closed quotes",
		Code:    "FILE002",
	}
	msgNoInput = UserMessage{
		Message: "The input is missing or malformed",
		Action:  "Send a CSV file, a JSON array of records, or a url, and check the query parameters",
		Code:    "FILE003",
	}
	msgUnopenable = UserMessage{
		Message: "The file or URL could not be opened",
		Action:  "Check the path or URL and try again",
		Code:    "FILE004",
	}
	msgBusy = UserMessage{
		Message: "Too many validations in progress",
		Action:  "Please wait a moment and try again",
		Code:    "REQ001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ002",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or raise the validation timeout",
		Code:    "REQ003",
	}
	msgNoHistory = UserMessage{
		Message: "Validation history is not enabled",
		Action:  "Set DATABASE_URL to keep run history",
		Code:    "REQ004",
	}
)

// errorPattern maps a substring of a technical error to a user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch errors that arrive without their type, such as
// messages relayed from a remote service. Specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "missing required column", msg: msgMissingColumn},
	{pattern: "validation failed", msg: msgDataInvalid},
	{pattern: "unsupported resource type", msg: msgUnknownType},
	{pattern: "file too large", msg: msgTooLarge},
	{pattern: "request body too large", msg: msgTooLarge},
	{pattern: "parse error", msg: msgBadCSV},
	{pattern: "too many concurrent validations", msg: msgBusy},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := mapTyped(err); ok {
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

func mapTyped(err error) (UserMessage, bool) {
	var (
		vf *validator.ValidationFailed
		he *tableschema.HeaderError
		se *tableschema.SchemaError
		re *tableschema.ReadError
	)
	switch {
	case errors.As(err, &vf):
		return msgDataInvalid, true
	case errors.As(err, &he):
		return msgMissingColumn, true
	case errors.Is(err, validator.ErrUnsupportedResourceType):
		return msgUnknownType, true
	case errors.As(err, &se):
		return msgSchemaInvalid, true
	case errors.Is(err, resources.ErrNoSchema):
		return msgSchemaUnavailable, true
	case errors.Is(err, ErrFileTooLarge), errors.Is(err, tableschema.ErrSourceTooLarge):
		return msgTooLarge, true
	case errors.Is(err, tableschema.ErrForbiddenAddress):
		return msgUnopenable, true
	case errors.Is(err, validator.ErrInvalidInput):
		return msgNoInput, true
	case errors.As(err, &re):
		return msgBadCSV, true
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return msgUnopenable, true
	case errors.Is(err, ErrTooManyValidations):
		return msgBusy, true
	case errors.Is(err, ErrHistoryDisabled):
		return msgNoHistory, true
	case errors.Is(err, context.Canceled):
		return msgCancelled, true
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout, true
	}

	var sre *validator.SchemaResolutionError
	if errors.As(err, &sre) {
		return msgSchemaUnavailable, true
	}
	return UserMessage{}, false
}

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
