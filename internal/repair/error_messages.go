package repair

// error_messages.go maps technical errors to operator-facing messages.
//
// Codes are grouped by category so an operator can quote them:
//
//	FILE001-FILE004  upload parsing (dataset.ParseError)
//	FLT001           filter pattern does not compile
//	REQ001-REQ002    request preconditions, session without data
//	SES001-SES003    session state (in flight, stale, pending audit)
//	RMT001-RMT004    external services
//	UPL004-UPL005    cancelled / timed out requests
//	RATE001          rate limiting
//	ERR000           anything else; check the logs
//
// Typed errors are matched first with errors.As / errors.Is. Errors that only
// arrive as text (wrapped by other libraries) fall through to the pattern
// table, matched case-insensitively with strings.Contains; the first match
// wins.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// UserMessage provides operator-facing error information with guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Reference code
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
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
			Action:  "Try a narrower filter or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to reach the repair service",
			Action:  "Check that the backend is running and try again",
			Code:    "RMT001",
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
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts an error to an operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var (
		parseErr  *dataset.ParseError
		filterErr *FilterError
		reqErr    *InvalidRequestError
		remoteErr *RemoteError
	)

	switch {
	case errors.Is(err, dataset.ErrFileTooLarge):
		return UserMessage{
			Message: fmt.Sprintf("File exceeds maximum size limit (%dMB)", dataset.MaxFileSize/(1024*1024)),
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		}
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		return UserMessage{
			Message: "File type is not supported",
			Action:  "Upload a .csv, .jsonl or .xlsx file",
			Code:    "FILE003",
		}
	case errors.Is(err, dataset.ErrEmptyFile):
		return UserMessage{
			Message: "The uploaded file has no data rows",
			Action:  "Upload a file with a header and at least one row",
			Code:    "FILE004",
		}
	case errors.As(err, &parseErr):
		return UserMessage{
			Message: "The file could not be parsed: " + parseErr.Error(),
			Action:  "Ensure every row has the same columns as the header",
			Code:    "FILE002",
		}
	case errors.As(err, &filterErr):
		return UserMessage{
			Message: fmt.Sprintf("The filter pattern %q is not a valid regular expression", filterErr.Pattern),
			Action:  "Fix the pattern, or use * to select every row",
			Code:    "FLT001",
		}
	case errors.As(err, &reqErr):
		return UserMessage{
			Message: "The repair request is incomplete: " + reqErr.Reason,
			Action:  "Complete the configuration and try again",
			Code:    "REQ001",
		}
	case errors.Is(err, ErrNoSession):
		return UserMessage{
			Message: "No dataset has been uploaded",
			Action:  "Upload a dataset first",
			Code:    "REQ002",
		}
	case errors.Is(err, ErrRepairInFlight):
		return UserMessage{
			Message: "A repair is already running",
			Action:  "Wait for it to finish",
			Code:    "SES001",
		}
	case errors.Is(err, ErrStaleResponse):
		return UserMessage{
			Message: "The repair finished after a new file was uploaded and was discarded",
			Action:  "Run the repair again on the new file",
			Code:    "SES002",
		}
	case errors.Is(err, ErrNoPendingAudit):
		return UserMessage{
			Message: "There is no audit batch waiting to be sent",
			Action:  "No action needed",
			Code:    "SES003",
		}
	case errors.Is(err, ErrNoRepairs):
		return UserMessage{
			Message: "No repair results were returned from the server",
			Action:  "Check the selected indexes and guidance, then try again",
			Code:    "RMT002",
		}
	case errors.As(err, &remoteErr):
		if remoteErr.Op == OpUpsertRows {
			return UserMessage{
				Message: "Repairs were applied but the audit log could not be written",
				Action:  "Retry sending the audit batch",
				Code:    "RMT004",
			}
		}
		if remoteErr.Status == 0 {
			if msg, ok := matchPattern(err); ok {
				return msg
			}
		}
		return UserMessage{
			Message: "The " + remoteErr.Op + " call failed",
			Action:  "Please try again; check the backend logs if it keeps failing",
			Code:    "RMT003",
		}
	}

	if msg, ok := matchPattern(err); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// UserError pairs a technical error with its operator-facing message.
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

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
