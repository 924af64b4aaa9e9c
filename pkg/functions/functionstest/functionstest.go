// Package functionstest builds example invocation events and contexts for unit
// testing functions.
//
//	func TestFunction(t *testing.T) {
//		fnCtx := functionstest.MockContext(functionstest.WithDataAPI(&fakeDataAPI{}))
//		result, err := run(context.Background(), functionstest.MockEvent(nil), fnCtx)
//		...
//	}
package functionstest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/heroku/sf-functions-go/pkg/dataapi"
	"github.com/heroku/sf-functions-go/pkg/functions"
)

const (
	DefaultEventType   = "com.salesforce.function.invoke.sync"
	DefaultEventSource = "urn:event:from:salesforce/JS/56.0/00DJS0000000123ABC/apex/ExampleClass:example_function():7"

	DefaultOrgID            = "00DJS0000000123ABC"
	DefaultOrgDomainURL     = "https://example-domain-url.my.salesforce.tld"
	DefaultUserID           = "005JS000000H123"
	DefaultUsername         = "user@example.tld"
	DefaultOnBehalfOfUserID = "005JS000000H456"
	DefaultAPIVersion       = "56.0"
	DefaultAccessToken      = "EXAMPLE-TOKEN"
)

type EventOption func(*functions.InvocationEvent)

func WithID(id string) EventOption {
	return func(e *functions.InvocationEvent) { e.ID = id }
}

func WithType(eventType string) EventOption {
	return func(e *functions.InvocationEvent) { e.Type = eventType }
}

func WithSource(source string) EventOption {
	return func(e *functions.InvocationEvent) { e.Source = source }
}

func WithTime(t time.Time) EventOption {
	return func(e *functions.InvocationEvent) { e.Time = &t }
}

// MockEvent returns an event carrying data, which is marshaled to JSON. It panics
// if data can't be marshaled.
func MockEvent(data any, opts ...EventOption) functions.InvocationEvent {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			panic(err)
		}
		raw = encoded
	}

	now := time.Now()
	event := functions.InvocationEvent{
		ID:              uuid.New().String(),
		Type:            DefaultEventType,
		Source:          DefaultEventSource,
		Data:            raw,
		DataContentType: "application/json",
		Time:            &now,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

type contextOptions struct {
	orgID            string
	orgDomainURL     string
	userID           string
	username         string
	onBehalfOfUserID string
	apiVersion       string
	dataAPI          dataapi.Client
}

type ContextOption func(*contextOptions)

func WithOrgID(id string) ContextOption {
	return func(o *contextOptions) { o.orgID = id }
}

func WithOrgDomainURL(url string) ContextOption {
	return func(o *contextOptions) { o.orgDomainURL = url }
}

func WithUser(id, username, onBehalfOfUserID string) ContextOption {
	return func(o *contextOptions) {
		o.userID = id
		o.username = username
		o.onBehalfOfUserID = onBehalfOfUserID
	}
}

func WithAPIVersion(version string) ContextOption {
	return func(o *contextOptions) { o.apiVersion = version }
}

// WithDataAPI replaces the Data API client, typically with a fake.
func WithDataAPI(client dataapi.Client) ContextOption {
	return func(o *contextOptions) { o.dataAPI = client }
}

// MockContext returns a context for an example org and user. Unless replaced with
// WithDataAPI, its Data API client points at the example org domain, which doesn't
// resolve.
func MockContext(opts ...ContextOption) functions.Context {
	o := contextOptions{
		orgID:            DefaultOrgID,
		orgDomainURL:     DefaultOrgDomainURL,
		userID:           DefaultUserID,
		username:         DefaultUsername,
		onBehalfOfUserID: DefaultOnBehalfOfUserID,
		apiVersion:       DefaultAPIVersion,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dataAPI == nil {
		o.dataAPI = dataapi.New(o.orgDomainURL, o.apiVersion, DefaultAccessToken)
	}

	return functions.Context{
		Org: &functions.Org{
			ID:         o.orgID,
			BaseURL:    o.orgDomainURL,
			DomainURL:  o.orgDomainURL,
			APIVersion: o.apiVersion,
			DataAPI:    o.dataAPI,
			User: functions.User{
				ID:               o.userID,
				Username:         o.username,
				OnBehalfOfUserID: o.onBehalfOfUserID,
			},
		},
	}
}
