package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/heroku/sf-functions-go/internal/cloudevent"
	"github.com/heroku/sf-functions-go/pkg/dataapi"
	"github.com/heroku/sf-functions-go/pkg/functions"
	"go.uber.org/zap"
)

// SessionPool provides the shared HTTP session for an org.
type SessionPool interface {
	Get(orgDomainURL string) (*http.Client, error)
}

type Invoker struct {
	function   functions.Function
	apiVersion string
	sessions   SessionPool
	logger     *zap.Logger
}

// NewInvoker returns an Invoker calling function. apiVersion, when set, overrides the
// API version carried by each event.
func NewInvoker(function functions.Function, apiVersion string, sessions SessionPool, logger *zap.Logger) *Invoker {
	return &Invoker{
		function:   function,
		apiVersion: apiVersion,
		sessions:   sessions,
		logger:     logger,
	}
}

// Invoke handles one delivery. header looks up request headers case-insensitively.
func (i *Invoker) Invoke(ctx context.Context, header func(string) string, body []byte) Response {
	if strings.EqualFold(header(HeaderHealthCheck), "true") {
		return jsonResponse(http.StatusOK, "OK", nil)
	}

	event, err := cloudevent.Parse(header, body)
	if err != nil {
		message := fmt.Sprintf("Couldn't parse CloudEvent: %v", err)
		i.logger.Error(message)
		return jsonResponse(http.StatusBadRequest, message, &ExtraInfo{
			RequestID: notAvailable,
			Source:    notAvailable,
		})
	}

	logger := i.logger.With(zap.String("invocationId", event.ID))
	extraInfo := &ExtraInfo{
		RequestID: event.FunctionContext.RequestID,
		Source:    event.Source,
	}

	fnCtx, err := i.newContext(event, logger)
	if err != nil {
		message := fmt.Sprintf("Internal error: %v", err)
		logger.Error(message)
		return jsonResponse(http.StatusServiceUnavailable, message, extraInfo)
	}

	start := time.Now()
	result, err := i.call(functions.ContextWithLogger(ctx, logger), newInvocationEvent(event), fnCtx)
	execTimeMs := float64(time.Since(start).Microseconds()) / 1000
	extraInfo.ExecTimeMs = &execTimeMs

	if err != nil {
		extraInfo.IsFunctionError = true
		var message string
		if p, ok := err.(*panicError); ok {
			message = fmt.Sprintf("Function panicked: %v", p.value)
			extraInfo.Stack = string(p.stack)
		} else {
			message = fmt.Sprintf("Error occurred while executing function: %v", err)
		}
		logger.Error(message)
		return jsonResponse(http.StatusInternalServerError, message, extraInfo)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		extraInfo.IsFunctionError = true
		message := fmt.Sprintf("Function return value can't be serialized: %v", err)
		logger.Error(message)
		return jsonResponse(http.StatusInternalServerError, message, extraInfo)
	}

	logger.Debug("function invoked", zap.Float64("execTimeMs", execTimeMs))
	extraInfo.StatusCode = http.StatusOK
	return Response{StatusCode: http.StatusOK, Body: payload, ExtraInfo: extraInfo}
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (i *Invoker) call(ctx context.Context, event functions.InvocationEvent, fnCtx functions.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return i.function(ctx, event, fnCtx)
}

func (i *Invoker) newContext(event *cloudevent.CloudEvent, logger *zap.Logger) (functions.Context, error) {
	userContext := event.SalesforceContext.UserContext

	apiVersion := i.apiVersion
	if apiVersion == "" {
		apiVersion = event.SalesforceContext.APIVersion
	}

	session, err := i.sessions.Get(userContext.OrgDomainURL)
	if err != nil {
		return functions.Context{}, fmt.Errorf("unable to get session for %s: %w", userContext.OrgDomainURL, err)
	}

	dataAPI := dataapi.New(
		userContext.OrgDomainURL,
		apiVersion,
		event.FunctionContext.AccessToken,
		dataapi.WithSession(session),
		dataapi.WithLogger(logger),
	)

	return functions.Context{
		Org: &functions.Org{
			ID:         userContext.OrgID,
			BaseURL:    userContext.SalesforceBaseURL,
			DomainURL:  userContext.OrgDomainURL,
			APIVersion: apiVersion,
			DataAPI:    dataAPI,
			User: functions.User{
				ID:               userContext.UserID,
				Username:         userContext.Username,
				OnBehalfOfUserID: userContext.OnBehalfOfUserID,
			},
		},
	}, nil
}

func newInvocationEvent(event *cloudevent.CloudEvent) functions.InvocationEvent {
	return functions.InvocationEvent{
		ID:              event.ID,
		Type:            event.Type,
		Source:          event.Source,
		Data:            event.Data,
		DataContentType: event.DataContentType,
		DataSchema:      event.DataSchema,
		Subject:         event.Subject,
		Time:            event.Time,
	}
}

func jsonResponse(statusCode int, message string, extraInfo *ExtraInfo) Response {
	body, _ := json.Marshal(message)
	if extraInfo != nil {
		extraInfo.StatusCode = statusCode
	}
	return Response{StatusCode: statusCode, Body: body, ExtraInfo: extraInfo}
}
