package runtime

import "encoding/json"

const (
	HeaderExtraInfo   = "x-extra-info"
	HeaderHealthCheck = "x-health-check"

	notAvailable = "n/a"
)

// ExtraInfo is the invocation metadata returned to the caller alongside the
// function result.
type ExtraInfo struct {
	RequestID       string   `json:"requestId"`
	Source          string   `json:"source"`
	ExecTimeMs      *float64 `json:"execTimeMs,omitempty"`
	StatusCode      int      `json:"statusCode"`
	IsFunctionError bool     `json:"isFunctionError,omitempty"`
	Stack           string   `json:"stack,omitempty"`
}

func (e ExtraInfo) HeaderValue() string {
	data, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Response is the transport independent outcome of one invocation. Body is always
// JSON.
type Response struct {
	StatusCode int
	Body       []byte
	// ExtraInfo is nil for health checks.
	ExtraInfo *ExtraInfo
}

func (r Response) Headers() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if r.ExtraInfo != nil {
		headers[HeaderExtraInfo] = r.ExtraInfo.HeaderValue()
	}
	return headers
}
