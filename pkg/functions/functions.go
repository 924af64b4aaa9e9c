// Package functions holds the types a Salesforce function is written against.
//
// A function is a plain Go func:
//
//	func run(ctx context.Context, event functions.InvocationEvent, fnCtx functions.Context) (any, error) {
//		result, err := fnCtx.Org.DataAPI.Query(ctx, "SELECT Id, Name FROM Account")
//		if err != nil {
//			return nil, err
//		}
//		functions.Logger(ctx).Info("queried accounts", zap.Int("count", len(result.Records)))
//		return result.Records, nil
//	}
//
// The returned value is serialized to JSON and sent back to the invoker.
package functions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroku/sf-functions-go/pkg/dataapi"
	"go.uber.org/zap"
)

// Function is the signature every user function implements.
type Function func(ctx context.Context, event InvocationEvent, fnCtx Context) (any, error)

// InvocationEvent is the metadata and data payload of the event that caused the
// function to be invoked.
type InvocationEvent struct {
	// ID uniquely identifies this execution of the function.
	ID string
	// Type of the event, for example com.salesforce.function.invoke.sync.
	Type string
	// Source identifies the context in which the event happened.
	Source string
	// Data is the raw JSON payload; nil when the event carried none.
	Data            json.RawMessage
	DataContentType string
	DataSchema      string
	Subject         string
	// Time of the occurrence, nil when unknown.
	Time *time.Time
}

// DecodeData unmarshals the event payload into v.
func (e InvocationEvent) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return json.Unmarshal([]byte("null"), v)
	}
	return json.Unmarshal(e.Data, v)
}

type User struct {
	ID       string
	Username string
	// OnBehalfOfUserID is empty unless the user operates on behalf of another.
	OnBehalfOfUserID string
}

type Org struct {
	ID        string
	BaseURL   string
	DomainURL string
	// APIVersion is the Salesforce API version the Data API client uses.
	APIVersion string
	DataAPI    dataapi.Client
	User       User
}

type Context struct {
	Org *Org
}

type loggerKey struct{}

// ContextWithLogger returns a copy of ctx carrying logger.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Logger returns the invocation logger stored in ctx, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return zap.NewNop()
}
