package runtime

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// HandleRequestApiGateway serves an invocation delivered through an API Gateway
// proxy integration.
func (i *Invoker) HandleRequestApiGateway(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod != "" && request.HTTPMethod != http.MethodPost {
		resp := jsonResponse(http.StatusMethodNotAllowed, "Method Not Allowed", nil)
		return apiGatewayResponse(resp), nil
	}

	body := []byte(request.Body)
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(request.Body)
		if err != nil {
			resp := jsonResponse(http.StatusBadRequest, "Couldn't decode request body: "+err.Error(), &ExtraInfo{
				RequestID: notAvailable,
				Source:    notAvailable,
			})
			return apiGatewayResponse(resp), nil
		}
		body = decoded
	}

	resp := i.Invoke(ctx, apiGatewayHeaders(request), body)
	return apiGatewayResponse(resp), nil
}

// apiGatewayHeaders returns a case-insensitive lookup over the request headers.
func apiGatewayHeaders(request events.APIGatewayProxyRequest) func(string) string {
	headers := make(map[string]string, len(request.Headers)+len(request.MultiValueHeaders))
	for key, values := range request.MultiValueHeaders {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = values[0]
		}
	}
	for key, value := range request.Headers {
		headers[strings.ToLower(key)] = value
	}
	return func(name string) string {
		return headers[strings.ToLower(name)]
	}
}

func apiGatewayResponse(resp Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers(),
		Body:       string(resp.Body),
	}
}
