package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // User-facing message
}

const (
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrUnauthorized    = 1003
	ErrForbidden       = 1004
	ErrTooManyRequests = 1006
	ErrRateLimited     = 1007
	ErrServiceUnavail  = 1008

	// Admin auth errors (2000-2999)
	ErrAuthInvalidCredentials = 2000
	ErrAuthInvalidToken       = 2006
	ErrAuthLoginRequired      = 2010

	// File errors (3000-3999)
	ErrFileNotFound    = 3000
	ErrFileMissing     = 3001
	ErrFileNameInvalid = 3002
	ErrFileTooLarge    = 3003
	ErrStorageFull     = 3004
	ErrStorageWrite    = 3005
	ErrStorageRead     = 3006
	ErrIndexFailed     = 3007
	ErrUnknownAction   = 3008
)

var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid form submission"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrUnauthorized:    {ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
	ErrForbidden:       {ErrForbidden, http.StatusForbidden, "Forbidden"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many uploads. Please try again in a minute."},
	ErrRateLimited:     {ErrRateLimited, http.StatusTooManyRequests, "Too many requests. Please try again later."},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	ErrAuthInvalidCredentials: {ErrAuthInvalidCredentials, http.StatusUnauthorized, "Invalid username or password."},
	ErrAuthInvalidToken:       {ErrAuthInvalidToken, http.StatusUnauthorized, "Invalid or expired session"},
	ErrAuthLoginRequired:      {ErrAuthLoginRequired, http.StatusUnauthorized, "Please log in to access this page"},

	ErrFileNotFound:    {ErrFileNotFound, http.StatusNotFound, "File not found or expired"},
	ErrFileMissing:     {ErrFileMissing, http.StatusBadRequest, "No file selected"},
	ErrFileNameInvalid: {ErrFileNameInvalid, http.StatusBadRequest, "Invalid filename"},
	ErrFileTooLarge:    {ErrFileTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
	ErrStorageFull:     {ErrStorageFull, http.StatusInsufficientStorage, "Server storage low. Please try again later."},
	ErrStorageWrite:    {ErrStorageWrite, http.StatusInternalServerError, "Error uploading file. Please try again."},
	ErrStorageRead:     {ErrStorageRead, http.StatusInternalServerError, "Error reading file"},
	ErrIndexFailed:     {ErrIndexFailed, http.StatusInternalServerError, "File index unavailable"},
	ErrUnknownAction:   {ErrUnknownAction, http.StatusBadRequest, "Unknown action"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// IsClientError reports whether code maps to a 4xx status
func IsClientError(code int) bool {
	status := GetHTTPStatus(code)
	return status >= 400 && status < 500
}

// FormatError formats an error message with optional details
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) == 0 || details[0] == "" {
		return msg
	}
	if strings.HasSuffix(msg, ".") {
		return msg + " " + details[0]
	}
	return fmt.Sprintf("%s: %s", msg, details[0])
}
