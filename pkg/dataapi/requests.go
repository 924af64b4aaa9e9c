package dataapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// restAPIRequest is one REST API operation: it knows how to build its HTTP request and
// how to interpret the response to it.
type restAPIRequest[T any] interface {
	url(orgDomainURL, apiVersion string) string
	httpMethod() string
	// requestBody returns nil when the request has no body.
	requestBody() map[string]any
	processResponse(ctx context.Context, statusCode int, body any) (T, error)
}

func dataURL(orgDomainURL, apiVersion, path string) string {
	return fmt.Sprintf("%s/services/data/v%s/%s", orgDomainURL, apiVersion, path)
}

type queryRecordsRequest struct {
	soql     string
	download DownloadFileFunc
}

func (r *queryRecordsRequest) url(orgDomainURL, apiVersion string) string {
	return dataURL(orgDomainURL, apiVersion, "query?"+url.Values{"q": {r.soql}}.Encode())
}

func (r *queryRecordsRequest) httpMethod() string {
	return http.MethodGet
}

func (r *queryRecordsRequest) requestBody() map[string]any {
	return nil
}

func (r *queryRecordsRequest) processResponse(ctx context.Context, statusCode int, body any) (RecordQueryResult, error) {
	return processRecordsResponse(ctx, statusCode, body, r.download)
}

// queryNextRecordsRequest follows a server supplied nextRecordsUrl, which already
// contains the API version.
type queryNextRecordsRequest struct {
	nextRecordsPath string
	download        DownloadFileFunc
}

func (r *queryNextRecordsRequest) url(orgDomainURL, _ string) string {
	return orgDomainURL + r.nextRecordsPath
}

func (r *queryNextRecordsRequest) httpMethod() string {
	return http.MethodGet
}

func (r *queryNextRecordsRequest) requestBody() map[string]any {
	return nil
}

func (r *queryNextRecordsRequest) processResponse(ctx context.Context, statusCode int, body any) (RecordQueryResult, error) {
	return processRecordsResponse(ctx, statusCode, body, r.download)
}

type createRecordRequest struct {
	record Record
}

func (r *createRecordRequest) url(orgDomainURL, apiVersion string) string {
	return dataURL(orgDomainURL, apiVersion, "sobjects/"+r.record.Type)
}

func (r *createRecordRequest) httpMethod() string {
	return http.MethodPost
}

func (r *createRecordRequest) requestBody() map[string]any {
	return normalizeFields(r.record.Fields)
}

func (r *createRecordRequest) processResponse(_ context.Context, statusCode int, body any) (string, error) {
	if statusCode != http.StatusCreated {
		return "", errorFromResponse(body)
	}

	object, ok := body.(map[string]any)
	if !ok {
		return "", unexpectedPayload("expected an object with the created id, got %s", describeJSON(body))
	}
	id, ok := object["id"]
	if !ok || id == nil {
		return "", unexpectedPayload("create response is missing 'id'")
	}
	return fmt.Sprint(id), nil
}

type updateRecordRequest struct {
	record Record
}

func newUpdateRecordRequest(record Record) (*updateRecordRequest, error) {
	if _, ok := record.Fields["Id"]; !ok {
		return nil, &MissingFieldError{Field: "Id"}
	}
	return &updateRecordRequest{record: record}, nil
}

func (r *updateRecordRequest) id() string {
	return fieldValueString(r.record.Fields["Id"])
}

func (r *updateRecordRequest) url(orgDomainURL, apiVersion string) string {
	return dataURL(orgDomainURL, apiVersion, fmt.Sprintf("sobjects/%s/%s", r.record.Type, r.id()))
}

func (r *updateRecordRequest) httpMethod() string {
	return http.MethodPatch
}

func (r *updateRecordRequest) requestBody() map[string]any {
	fields := make(map[string]any, len(r.record.Fields))
	for key, value := range r.record.Fields {
		if key != "Id" {
			fields[key] = value
		}
	}
	return normalizeFields(fields)
}

// The API answers a successful update with 204 and no content, so the id is echoed
// from the record.
func (r *updateRecordRequest) processResponse(_ context.Context, statusCode int, body any) (string, error) {
	if statusCode != http.StatusNoContent {
		return "", errorFromResponse(body)
	}
	return r.id(), nil
}

type deleteRecordRequest struct {
	objectType string
	recordID   string
}

func (r *deleteRecordRequest) url(orgDomainURL, apiVersion string) string {
	return dataURL(orgDomainURL, apiVersion, fmt.Sprintf("sobjects/%s/%s", r.objectType, r.recordID))
}

func (r *deleteRecordRequest) httpMethod() string {
	return http.MethodDelete
}

func (r *deleteRecordRequest) requestBody() map[string]any {
	return nil
}

func (r *deleteRecordRequest) processResponse(_ context.Context, statusCode int, body any) (string, error) {
	if statusCode != http.StatusNoContent {
		return "", errorFromResponse(body)
	}
	return r.recordID, nil
}

const compositeGraphID = "graph0"

// compositeGraphRequest submits all sub-requests of a UnitOfWork as a single graph,
// which the org executes atomically.
type compositeGraphRequest struct {
	apiVersion  string
	subRequests []subRequest
}

func (r *compositeGraphRequest) url(orgDomainURL, apiVersion string) string {
	return dataURL(orgDomainURL, apiVersion, "composite/graph")
}

func (r *compositeGraphRequest) httpMethod() string {
	return http.MethodPost
}

func (r *compositeGraphRequest) requestBody() map[string]any {
	compositeRequest := make([]map[string]any, 0, len(r.subRequests))
	for _, sub := range r.subRequests {
		// An empty org domain keeps the sub-request url relative.
		item := map[string]any{
			"url":         sub.request.url("", r.apiVersion),
			"method":      sub.request.httpMethod(),
			"referenceId": sub.referenceID.ID,
		}
		if body := sub.request.requestBody(); len(body) > 0 {
			item["body"] = body
		}
		compositeRequest = append(compositeRequest, item)
	}

	return map[string]any{
		"graphs": []map[string]any{
			{
				"graphId":          compositeGraphID,
				"compositeRequest": compositeRequest,
			},
		},
	}
}

// processResponse hands every sub-response to the sub-request it belongs to. The
// graph is all-or-nothing, so the errors of all failed sub-requests are combined into
// one SalesforceRestAPIError instead of returning a partial result.
func (r *compositeGraphRequest) processResponse(ctx context.Context, statusCode int, body any) (map[ReferenceID]string, error) {
	if statusCode != http.StatusOK {
		return nil, errorFromResponse(body)
	}

	compositeResponses, err := compositeResponses(body)
	if err != nil {
		return nil, err
	}

	requestsByID := make(map[ReferenceID]restAPIRequest[string], len(r.subRequests))
	for _, sub := range r.subRequests {
		requestsByID[sub.referenceID] = sub.request
	}

	result := make(map[ReferenceID]string, len(compositeResponses))
	var apiErrors []InnerSalesforceRestAPIError

	for _, rawResponse := range compositeResponses {
		response, ok := rawResponse.(map[string]any)
		if !ok {
			return nil, unexpectedPayload("expected a composite response object, got %s", describeJSON(rawResponse))
		}
		rawReferenceID, ok := response["referenceId"].(string)
		if !ok {
			return nil, unexpectedPayload("composite response is missing 'referenceId'")
		}
		subStatusCode, ok := jsonInt(response["httpStatusCode"])
		if !ok {
			return nil, unexpectedPayload("composite response is missing 'httpStatusCode'")
		}

		referenceID := ReferenceID{ID: rawReferenceID}
		request, ok := requestsByID[referenceID]
		if !ok {
			return nil, unexpectedPayload("composite response for unknown reference id '%s'", rawReferenceID)
		}

		id, err := request.processResponse(ctx, subStatusCode, response["body"])
		if err != nil {
			var restAPIError *SalesforceRestAPIError
			if !errors.As(err, &restAPIError) {
				return nil, err
			}
			apiErrors = append(apiErrors, restAPIError.APIErrors...)
			continue
		}
		result[referenceID] = id
	}

	if len(apiErrors) > 0 {
		return nil, &SalesforceRestAPIError{APIErrors: apiErrors}
	}
	if len(result) != len(r.subRequests) {
		return nil, unexpectedPayload("expected %d composite responses, got %d", len(r.subRequests), len(result))
	}
	return result, nil
}

func compositeResponses(body any) ([]any, error) {
	object, ok := body.(map[string]any)
	if !ok {
		return nil, unexpectedPayload("expected a composite graph response object, got %s", describeJSON(body))
	}
	graphs, ok := object["graphs"].([]any)
	if !ok || len(graphs) == 0 {
		return nil, unexpectedPayload("composite graph response is missing 'graphs'")
	}
	graph, ok := graphs[0].(map[string]any)
	if !ok {
		return nil, unexpectedPayload("expected a graph object, got %s", describeJSON(graphs[0]))
	}
	graphResponse, ok := graph["graphResponse"].(map[string]any)
	if !ok {
		return nil, unexpectedPayload("graph is missing 'graphResponse'")
	}
	responses, ok := graphResponse["compositeResponse"].([]any)
	if !ok {
		return nil, unexpectedPayload("graph response is missing 'compositeResponse'")
	}
	return responses, nil
}
