// Package core implements the host side of a bulk spreadsheet editor.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Message Errors (MSG001-MSG099)
//
// Errors raised while decoding a message from the grid surface:
//
//	MSG001 - Wrong direction: The message cannot be sent to the host
//	         Action: Reload the editor
//	         Patterns: "cannot be sent to the host", "travels host->surface"
//
//	MSG002 - Unknown type: The message type is not recognized
//	         Action: Reload the editor
//	         Patterns: "unknown type"
//
//	MSG003 - Malformed: The message could not be read
//	         Action: Reload the editor; report the code if it keeps happening
//	         Patterns: "malformed message"
//
// # Formula Errors (FRM001-FRM099)
//
// Errors raised when a formula cannot be applied:
//
//	FRM001 - Empty formula: No formula was entered
//	         Action: Type a formula such as price.compra * 1.3
//	         Patterns: "formula is empty"
//
//	FRM002 - Logical without comparison: AND/OR used without a comparison
//	         Action: Compare values inside AND/OR, e.g. price > 10 AND price < 20
//	         Patterns: "without a comparison"
//
//	FRM003 - Syntax error: The formula could not be understood
//	         Action: Check parentheses, operators and input names
//	         Patterns: "formula syntax error"
//
//	FRM004 - Not finite: The formula produced an infinite result
//	         Action: Check for division by zero
//	         Patterns: "not a finite number"
//
//	FRM005 - Not numeric: The formula produced true/false instead of a number
//	         Action: Wrap the condition in IF(condition, value, value)
//	         Patterns: "result is not a number"
//
//	FRM006 - Unsupported: This mode has no column to write formula results to
//	         Action: Switch to a mode with a price column
//	         Patterns: "formula not supported"
//
// # Lookup Errors (LKP001-LKP099)
//
// Errors from the product catalog lookup:
//
//	LKP001 - System busy: Too many lookups in progress
//	         Action: Please wait a moment and try again
//	         Patterns: "too many concurrent lookups"
//
//	LKP002 - No catalog: No product catalog is configured
//	         Action: Ask an administrator to configure the database
//	         Patterns: "no catalog configured"
//
//	LKP003 - Catalog unavailable: Unable to reach the product catalog
//	         Action: Please try again in a few moments
//	         Patterns: "connection refused", "connect to database", "query catalog"
//
//	LKP004 - Timeout: The catalog took too long to answer
//	         Action: Try again with fewer codes
//	         Patterns: "deadline exceeded", "timeout"
//
// # Session Errors (SES001-SES099)
//
// Errors related to editing sessions:
//
//	SES001 - Session expired: Editing session not found
//	         Action: The session may have expired. Reload the editor
//	         Patterns: "session not found"
//
//	SES002 - Session closed: The editing session was closed
//	         Action: Reload the editor
//	         Patterns: "session closed"
//
//	SES003 - Unknown mode: The editing mode does not exist
//	         Action: Pick one of the listed modes
//	         Patterns: "unknown mode"
//
//	SES004 - Too many sessions: The server has too many open editors
//	         Action: Close unused editor tabs and try again
//	         Patterns: "too many open sessions"
//
//	SES005 - Request cancelled: Request was cancelled
//	         Action: Please try again
//	         Patterns: "context canceled"
//
// # Validation Errors (VAL001-VAL099)
//
// Errors related to cell values:
//
//	VAL001 - Invalid number: Invalid number format detected
//	         Action: Remove currency symbols and use one decimal separator
//	         Patterns: "invalid number"
//
//	VAL002 - Invalid option: Value is not in the allowed list
//	         Action: Pick one of the listed values
//	         Patterns: "value must be one of"
//
//	VAL003 - Invalid checkbox: Value is not yes/no
//	         Action: Use yes/no, true/false or 1/0
//	         Patterns: "must be yes/no"
//
//	VAL004 - Invalid request: The request body could not be read
//	         Action: Check the request format
//	         Patterns: "invalid request"
//
// # Rate Limiting (RATE001-RATE099)
//
// Errors related to request throttling:
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Multiple patterns can map to the same code
// (e.g., LKP003 matches both "connection refused" and "query catalog").
//
// # For Support Staff
//
// When a user reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. Review the suggested action to guide the user
//  4. If ERR000, check application logs for the original technical error
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgWrongDirection = UserMessage{
		Message: "The message cannot be sent to the host",
		Action:  "Reload the editor",
		Code:    "MSG001",
	}
	lkpUnavailable = UserMessage{
		Message: "Unable to reach the product catalog",
		Action:  "Please try again in a few moments",
		Code:    "LKP003",
	}
	lkpTimeout = UserMessage{
		Message: "The catalog took too long to answer",
		Action:  "Try again with fewer codes",
		Code:    "LKP004",
	}
)

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Message Errors (MSG001-MSG003)
	// Every decode error carries "malformed message", so the generic code
	// comes last.
	// =========================================================================
	{pattern: "cannot be sent to the host", msg: msgWrongDirection},
	{pattern: "travels host->surface", msg: msgWrongDirection},
	{
		pattern: "unknown type",
		msg: UserMessage{
			Message: "The message type is not recognized",
			Action:  "Reload the editor",
			Code:    "MSG002",
		},
	},
	{
		pattern: "malformed message",
		msg: UserMessage{
			Message: "The message could not be read",
			Action:  "Reload the editor; report the code if it keeps happening",
			Code:    "MSG003",
		},
	},

	// =========================================================================
	// Formula Errors (FRM001-FRM006)
	// =========================================================================
	{
		pattern: "formula is empty",
		msg: UserMessage{
			Message: "No formula was entered",
			Action:  "Type a formula such as price.compra * 1.3",
			Code:    "FRM001",
		},
	},
	{
		pattern: "without a comparison",
		msg: UserMessage{
			Message: "AND/OR used without a comparison",
			Action:  "Compare values inside AND/OR, e.g. price > 10 AND price < 20",
			Code:    "FRM002",
		},
	},
	{
		pattern: "formula syntax error",
		msg: UserMessage{
			Message: "The formula could not be understood",
			Action:  "Check parentheses, operators and input names",
			Code:    "FRM003",
		},
	},
	{
		pattern: "not a finite number",
		msg: UserMessage{
			Message: "The formula produced an infinite result",
			Action:  "Check for division by zero",
			Code:    "FRM004",
		},
	},
	{
		pattern: "result is not a number",
		msg: UserMessage{
			Message: "The formula produced true/false instead of a number",
			Action:  "Wrap the condition in IF(condition, value, value)",
			Code:    "FRM005",
		},
	},
	{
		pattern: "formula not supported",
		msg: UserMessage{
			Message: "This mode has no column to write formula results to",
			Action:  "Switch to a mode with a price column",
			Code:    "FRM006",
		},
	},

	// =========================================================================
	// Lookup Errors (LKP001-LKP004)
	// =========================================================================
	{
		pattern: "too many concurrent lookups",
		msg: UserMessage{
			Message: "Too many lookups in progress",
			Action:  "Please wait a moment and try again",
			Code:    "LKP001",
		},
	},
	{
		pattern: "no catalog configured",
		msg: UserMessage{
			Message: "No product catalog is configured",
			Action:  "Ask an administrator to configure the database",
			Code:    "LKP002",
		},
	},
	{pattern: "connection refused", msg: lkpUnavailable},
	{pattern: "connect to database", msg: lkpUnavailable},
	{pattern: "query catalog", msg: lkpUnavailable},
	{pattern: "deadline exceeded", msg: lkpTimeout},
	{pattern: "timeout", msg: lkpTimeout},

	// =========================================================================
	// Session Errors (SES001-SES005)
	// =========================================================================
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Editing session not found",
			Action:  "The session may have expired. Reload the editor",
			Code:    "SES001",
		},
	},
	{
		pattern: "session closed",
		msg: UserMessage{
			Message: "The editing session was closed",
			Action:  "Reload the editor",
			Code:    "SES002",
		},
	},
	{
		pattern: "unknown mode",
		msg: UserMessage{
			Message: "The editing mode does not exist",
			Action:  "Pick one of the listed modes",
			Code:    "SES003",
		},
	},
	{
		pattern: "too many open sessions",
		msg: UserMessage{
			Message: "The server has too many open editors",
			Action:  "Close unused editor tabs and try again",
			Code:    "SES004",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "SES005",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL004)
	// =========================================================================
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use one decimal separator",
			Code:    "VAL001",
		},
	},
	{
		pattern: "value must be one of",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Pick one of the listed values",
			Code:    "VAL002",
		},
	},
	{
		pattern: "must be yes/no",
		msg: UserMessage{
			Message: "Value is not yes/no",
			Action:  "Use yes/no, true/false or 1/0",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid request",
		msg: UserMessage{
			Message: "The request body could not be read",
			Action:  "Check the request format",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("lookup: %w", ErrSessionNotFound)
//	msg := MapError(err)
//	// msg.Code == "SES001"
//	// msg.Message == "Editing session not found"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "Editing session not found (Code: SES001). The session may have expired. Reload the editor"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
