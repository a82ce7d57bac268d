package wizard

// messages.go maps technical errors to messages shown in the wizard UI.
//
// Codes are grouped by category so users can quote them when reporting a
// problem:
//
//	FILE001 - Invalid file format        Patterns: "invalid file format"
//	FILE002 - File could not be read     Patterns: "file read failure"
//	FILE003 - File too large             Patterns: "file too large", "request body too large"
//	FILE004 - No file                    Patterns: "no file provided"
//
//	WIZ001 - Step requirements not met   Patterns: "guard violation"
//	WIZ002 - Unknown site                Patterns: "site not found"
//	WIZ003 - Processing already running  Patterns: "processing already running"
//	WIZ004 - Invalid site                Patterns: "invalid site"
//	WIZ005 - Not processing              Patterns: "not on the processing step"
//	WIZ006 - System busy                 Patterns: "too many runs"
//	WIZ007 - No run                      Patterns: "run not found"
//
//	SES001 - Session expired             Patterns: "session not found"
//
//	UPL004 - Request cancelled           Patterns: "context canceled"
//	UPL005 - Request timeout             Patterns: "context deadline exceeded"
//
//	RATE001 - Rate limited               Patterns: "rate limit"
//	REQ001  - Malformed request          Patterns: "invalid request"
//
//	ERR000 - Anything else. Check the server log for the original error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an error rephrased for the person using the wizard.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File errors
	{
		pattern: "invalid file format",
		msg: UserMessage{
			Message: "Only CSV files are accepted",
			Action:  "Choose a file ending in .csv",
			Code:    "FILE001",
		},
	},
	{
		pattern: "file read failure",
		msg: UserMessage{
			Message: "The file could not be read",
			Action:  "Check the file is not open elsewhere and upload it again",
			Code:    "FILE002",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE003",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller parts",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},

	// Wizard errors
	{
		pattern: "guard violation",
		msg:     guardMessage,
	},
	{
		pattern: "site not found",
		msg: UserMessage{
			Message: "That search site no longer exists",
			Action:  "Reload the page to see the current list",
			Code:    "WIZ002",
		},
	},
	{
		pattern: "processing already running",
		msg: UserMessage{
			Message: "Enrichment is already running",
			Action:  "Wait for it to finish or cancel it first",
			Code:    "WIZ003",
		},
	},
	{
		pattern: "invalid site",
		msg: UserMessage{
			Message: "A search site needs a name and a URL",
			Action:  "Fill in both fields and try again",
			Code:    "WIZ004",
		},
	},
	{
		pattern: "not on the processing step",
		msg: UserMessage{
			Message: "Enrichment can only start from the processing step",
			Action:  "Go back to the sites step and continue from there",
			Code:    "WIZ005",
		},
	},
	{
		pattern: "too many runs",
		msg: UserMessage{
			Message: "System is busy enriching other files",
			Action:  "Please wait a moment and try again",
			Code:    "WIZ006",
		},
	},

	{
		pattern: "run not found",
		msg: UserMessage{
			Message: "No enrichment run is active",
			Action:  "Start processing from the processing step",
			Code:    "WIZ007",
		},
	},

	// Session errors
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your wizard session has expired",
			Action:  "Start again by uploading your file",
			Code:    "SES001",
		},
	},

	// Request errors
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request could not be understood",
			Action:  "Reload the page and try again",
			Code:    "REQ001",
		},
	},
}

var guardMessage = UserMessage{
	Message: "This step is not complete yet",
	Action:  "Finish the current step before continuing",
	Code:    "WIZ001",
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. A guard
// violation keeps its specific reason as the action.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ge *GuardError
	if errors.As(err, &ge) {
		msg := guardMessage
		msg.Action = capitalize(ge.Reason)
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs the original error, kept for logging, with its mapped message.
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

// NewUserError returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
