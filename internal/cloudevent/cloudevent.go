// Package cloudevent decodes the binary mode CloudEvents Salesforce delivers to
// functions over HTTP.
package cloudevent

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	extSalesforceContext         = "sfcontext"
	extSalesforceFunctionContext = "sffncontext"
)

type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

type UserContext struct {
	OrgID             string
	UserID            string
	OnBehalfOfUserID  string
	Username          string
	SalesforceBaseURL string
	OrgDomainURL      string
}

type SalesforceContext struct {
	APIVersion     string
	PayloadVersion string
	UserContext    UserContext
}

type FunctionContext struct {
	AccessToken          string
	RequestID            string
	FunctionInvocationID string
	FunctionName         string
	ApexID               string
	ApexFQN              string
	Resource             string
}

type CloudEvent struct {
	ID              string
	Source          string
	SpecVersion     string
	Type            string
	Data            json.RawMessage
	DataContentType string
	DataSchema      string
	Subject         string
	Time            *time.Time

	SalesforceContext SalesforceContext
	FunctionContext   FunctionContext
}

// Parse builds a CloudEvent from the request headers and body. header lookups are
// case-insensitive, so any http.Header compatible getter works.
func Parse(header func(string) string, body []byte) (*CloudEvent, error) {
	contentType := header("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return nil, errorf("Content-Type must be 'application/json' not '%s'", contentType)
	}

	var data json.RawMessage
	if len(bytes.TrimSpace(body)) > 0 {
		if err := validateJSON(body); err != nil {
			return nil, errorf("Data payload isn't valid JSON: %v", err)
		}
		data = append(json.RawMessage(nil), body...)
	}

	required := map[string]string{}
	for _, name := range []string{"ce-id", "ce-source", "ce-specversion", "ce-type", "ce-sfcontext", "ce-sffncontext"} {
		value := header(name)
		if value == "" {
			return nil, errorf("Missing required header '%s'", name)
		}
		required[name] = value
	}

	event := &CloudEvent{
		ID:              required["ce-id"],
		Source:          required["ce-source"],
		SpecVersion:     required["ce-specversion"],
		Type:            required["ce-type"],
		Data:            data,
		DataContentType: contentType,
		DataSchema:      header("ce-dataschema"),
		Subject:         header("ce-subject"),
	}

	if rawTime := header("ce-time"); rawTime != "" {
		t, err := time.Parse(time.RFC3339Nano, rawTime)
		if err != nil {
			return nil, errorf("ce-time isn't a valid RFC 3339 timestamp: %v", err)
		}
		event.Time = &t
	}

	var err error
	if event.SalesforceContext, err = parseSalesforceContext(required["ce-sfcontext"]); err != nil {
		return nil, err
	}
	if event.FunctionContext, err = parseFunctionContext(required["ce-sffncontext"]); err != nil {
		return nil, err
	}
	return event, nil
}

// ParseHTTP is Parse for a net/http request whose body was already read.
func ParseHTTP(h http.Header, body []byte) (*CloudEvent, error) {
	return Parse(h.Get, body)
}

func validateJSON(data []byte) error {
	var value any
	return json.Unmarshal(data, &value)
}

// extension is a decoded base64 JSON object extension. Its accessors, and those of
// any nested object obtained with sub, record the first problem they run into.
type extension struct {
	name   string
	object map[string]any
	err    *error
}

func decodeExtension(name, encoded string) (*extension, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errorf("%s isn't correctly encoded: %v", name, err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errorf("%s isn't valid JSON: %v", name, err)
	}

	object, ok := value.(map[string]any)
	if !ok {
		return nil, errorf("%s contains unexpected data type: expected an object, got %s", name, jsonTypeName(value))
	}
	return &extension{name: name, object: object, err: new(error)}, nil
}

func (e *extension) fail(format string, args ...any) {
	if *e.err == nil {
		*e.err = errorf(e.name+" "+format, args...)
	}
}

func (e *extension) sub(key string) *extension {
	child := &extension{name: e.name, object: map[string]any{}, err: e.err}

	value, ok := e.object[key]
	if !ok {
		e.fail("missing required key '%s'", key)
		return child
	}
	object, ok := value.(map[string]any)
	if !ok {
		e.fail("contains unexpected data type: '%s' must be an object, got %s", key, jsonTypeName(value))
		return child
	}
	child.object = object
	return child
}

func (e *extension) required(key string) string {
	if _, ok := e.object[key]; !ok {
		e.fail("missing required key '%s'", key)
		return ""
	}
	return e.optional(key)
}

func (e *extension) optional(key string) string {
	value, ok := e.object[key]
	if !ok || value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		e.fail("contains unexpected data type: '%s' must be a string, got %s", key, jsonTypeName(value))
		return ""
	}
	return s
}

func parseSalesforceContext(encoded string) (SalesforceContext, error) {
	ext, err := decodeExtension(extSalesforceContext, encoded)
	if err != nil {
		return SalesforceContext{}, err
	}

	user := ext.sub("userContext")
	ctx := SalesforceContext{
		APIVersion:     ext.required("apiVersion"),
		PayloadVersion: ext.required("payloadVersion"),
		UserContext: UserContext{
			OrgID:             user.required("orgId"),
			UserID:            user.required("userId"),
			OnBehalfOfUserID:  user.optional("onBehalfOfUserId"),
			Username:          user.required("username"),
			SalesforceBaseURL: user.required("salesforceBaseUrl"),
			OrgDomainURL:      user.required("orgDomainUrl"),
		},
	}
	if *ext.err != nil {
		return SalesforceContext{}, *ext.err
	}
	return ctx, nil
}

func parseFunctionContext(encoded string) (FunctionContext, error) {
	ext, err := decodeExtension(extSalesforceFunctionContext, encoded)
	if err != nil {
		return FunctionContext{}, err
	}

	ctx := FunctionContext{
		AccessToken:          ext.required("accessToken"),
		RequestID:            ext.required("requestId"),
		FunctionInvocationID: ext.optional("functionInvocationId"),
		FunctionName:         ext.optional("functionName"),
		ApexID:               ext.optional("apexId"),
		ApexFQN:              ext.optional("apexFQN"),
		Resource:             ext.optional("resource"),
	}
	if *ext.err != nil {
		return FunctionContext{}, *ext.err
	}
	return ctx, nil
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
