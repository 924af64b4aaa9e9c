package dataapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDataAPI matches every error produced by this package via errors.Is.
var ErrDataAPI = errors.New("data api error")

// SalesforceRestAPIError is returned when the REST API reported one or more errors.
type SalesforceRestAPIError struct {
	APIErrors []InnerSalesforceRestAPIError
}

func (e *SalesforceRestAPIError) Error() string {
	messages := make([]string, 0, len(e.APIErrors))
	for _, apiError := range e.APIErrors {
		messages = append(messages, apiError.String())
	}
	return "Salesforce REST API reported the following error(s):\n---\n" + strings.Join(messages, "\n---\n")
}

func (e *SalesforceRestAPIError) Is(target error) bool {
	return target == ErrDataAPI
}

// InnerSalesforceRestAPIError is a single error entry returned by the REST API.
type InnerSalesforceRestAPIError struct {
	Message   string
	ErrorCode string
	// Fields is empty for errors not related to a specific field.
	Fields []string
}

// The message already names the affected fields, so Fields is left out.
func (e InnerSalesforceRestAPIError) String() string {
	return fmt.Sprintf("%s error:\n%s", e.ErrorCode, e.Message)
}

// MissingFieldError is returned when a Record lacks a field the operation requires.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("The '%s' field is required, but isn't present in the given Record.", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrDataAPI
}

// ClientError is returned when the request failed because of a connection error,
// timeout or malformed HTTP response.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("An error occurred while making the request: %v", e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

func (e *ClientError) Is(target error) bool {
	return target == ErrDataAPI
}

// UnexpectedRestAPIResponsePayloadError is returned when the server responded with a
// payload that does not have the shape the REST API defines.
type UnexpectedRestAPIResponsePayloadError struct {
	Reason string
	Err    error
}

func (e *UnexpectedRestAPIResponsePayloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *UnexpectedRestAPIResponsePayloadError) Unwrap() error {
	return e.Err
}

func (e *UnexpectedRestAPIResponsePayloadError) Is(target error) bool {
	return target == ErrDataAPI
}

func unexpectedPayload(format string, args ...any) error {
	return &UnexpectedRestAPIResponsePayloadError{
		Reason: "The server responded with an unexpected payload: " + fmt.Sprintf(format, args...),
	}
}
