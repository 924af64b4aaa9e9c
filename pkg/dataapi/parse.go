package dataapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// DownloadFileFunc fetches the raw content behind a relative URL of the org, such as
// the value of ContentVersion.VersionData in a query result.
type DownloadFileFunc func(ctx context.Context, path string) ([]byte, error)

const attributesKey = "attributes"

func normalizeFields(fields map[string]any) map[string]any {
	normalized := make(map[string]any, len(fields))
	for key, value := range fields {
		normalized[key] = normalizeFieldValue(value)
	}
	return normalized
}

func normalizeFieldValue(value any) any {
	switch v := value.(type) {
	case ReferenceID:
		return v.backReference()
	case *ReferenceID:
		if v == nil {
			return nil
		}
		return v.backReference()
	case []byte:
		return base64.StdEncoding.EncodeToString(v)
	}
	return value
}

// fieldValueString renders a field value for use inside a URL path.
func fieldValueString(value any) string {
	switch v := normalizeFieldValue(value).(type) {
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// errorFromResponse turns an error payload into a SalesforceRestAPIError. A payload that
// is not a non-empty array of {message, errorCode, fields?} objects is a protocol
// violation rather than an API error.
func errorFromResponse(body any) error {
	list, ok := body.([]any)
	if !ok {
		return unexpectedPayload("expected an array of errors, got %s", describeJSON(body))
	}
	if len(list) == 0 {
		return unexpectedPayload("expected at least one error")
	}

	apiErrors := make([]InnerSalesforceRestAPIError, 0, len(list))
	for _, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			return unexpectedPayload("expected an error object, got %s", describeJSON(item))
		}
		message, ok := object["message"].(string)
		if !ok {
			return unexpectedPayload("error object is missing 'message'")
		}
		errorCode, ok := object["errorCode"].(string)
		if !ok {
			return unexpectedPayload("error object is missing 'errorCode'")
		}

		fields := []string{}
		if rawFields, ok := object["fields"].([]any); ok {
			for _, rawField := range rawFields {
				field, ok := rawField.(string)
				if !ok {
					return unexpectedPayload("error field name is %s, not a string", describeJSON(rawField))
				}
				fields = append(fields, field)
			}
		}

		apiErrors = append(apiErrors, InnerSalesforceRestAPIError{
			Message:   message,
			ErrorCode: errorCode,
			Fields:    fields,
		})
	}

	return &SalesforceRestAPIError{APIErrors: apiErrors}
}

func processRecordsResponse(ctx context.Context, statusCode int, body any, download DownloadFileFunc) (RecordQueryResult, error) {
	if statusCode != 200 {
		return RecordQueryResult{}, errorFromResponse(body)
	}

	object, ok := body.(map[string]any)
	if !ok {
		return RecordQueryResult{}, unexpectedPayload("expected a query result object, got %s", describeJSON(body))
	}
	return parseRecordQueryResult(ctx, object, download)
}

func parseRecordQueryResult(ctx context.Context, object map[string]any, download DownloadFileFunc) (RecordQueryResult, error) {
	done, ok := object["done"].(bool)
	if !ok {
		return RecordQueryResult{}, unexpectedPayload("query result is missing 'done'")
	}
	totalSize, ok := jsonInt(object["totalSize"])
	if !ok {
		return RecordQueryResult{}, unexpectedPayload("query result is missing 'totalSize'")
	}
	rawRecords, ok := object["records"].([]any)
	if !ok {
		return RecordQueryResult{}, unexpectedPayload("query result is missing 'records'")
	}

	var nextRecordsURL string
	if rawURL, present := object["nextRecordsUrl"]; present && rawURL != nil {
		nextRecordsURL, ok = rawURL.(string)
		if !ok {
			return RecordQueryResult{}, unexpectedPayload("'nextRecordsUrl' is %s, not a string", describeJSON(rawURL))
		}
	}

	records := make([]QueriedRecord, 0, len(rawRecords))
	for _, rawRecord := range rawRecords {
		recordObject, ok := rawRecord.(map[string]any)
		if !ok {
			return RecordQueryResult{}, unexpectedPayload("expected a record object, got %s", describeJSON(rawRecord))
		}
		record, err := parseQueriedRecord(ctx, recordObject, download)
		if err != nil {
			return RecordQueryResult{}, err
		}
		records = append(records, record)
	}

	return RecordQueryResult{
		Done:           done,
		TotalSize:      totalSize,
		Records:        records,
		NextRecordsURL: nextRecordsURL,
	}, nil
}

func parseQueriedRecord(ctx context.Context, object map[string]any, download DownloadFileFunc) (QueriedRecord, error) {
	objectType, err := recordType(object)
	if err != nil {
		return QueriedRecord{}, err
	}

	record := QueriedRecord{
		Record: Record{Type: objectType, Fields: map[string]any{}},
	}

	// Sorted so that binary downloads happen in a stable order.
	keys := make([]string, 0, len(object))
	for key := range object {
		if key != attributesKey {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := object[key]

		switch classifyValue(value) {
		case nestedRecord:
			nested, err := parseQueriedRecord(ctx, value.(map[string]any), download)
			if err != nil {
				return QueriedRecord{}, err
			}
			record.Fields[key] = nested
		case nestedQueryResult:
			nested, err := parseRecordQueryResult(ctx, value.(map[string]any), download)
			if err != nil {
				return QueriedRecord{}, err
			}
			if record.SubQueryResults == nil {
				record.SubQueryResults = map[string]RecordQueryResult{}
			}
			record.SubQueryResults[key] = nested
		default:
			if isBinaryField(objectType, key) && value != nil {
				path, ok := value.(string)
				if !ok {
					return QueriedRecord{}, unexpectedPayload("binary field '%s' is %s, not a URL", key, describeJSON(value))
				}
				content, err := download(ctx, path)
				if err != nil {
					return QueriedRecord{}, err
				}
				record.Fields[key] = content
				continue
			}
			record.Fields[key] = value
		}
	}

	return record, nil
}

type valueShape int

const (
	plainValue valueShape = iota
	nestedRecord
	nestedQueryResult
)

// classifyValue decides how a value inside a queried record is interpreted. The REST
// API does not tag nested objects, so the decision is made by shape alone:
//
//   - an object carrying an "attributes" marker is a nested record (parent lookup);
//   - an object without the marker that has "done", "totalSize" and "records" is a
//     sub-query result page;
//   - anything else, including other objects such as compound address fields, is kept
//     as a plain value.
//
// An object having both the marker and the page keys is treated as a record.
func classifyValue(value any) valueShape {
	object, ok := value.(map[string]any)
	if !ok {
		return plainValue
	}
	if _, ok := object[attributesKey].(map[string]any); ok {
		return nestedRecord
	}
	_, hasDone := object["done"]
	_, hasTotalSize := object["totalSize"]
	_, hasRecords := object["records"]
	if hasDone && hasTotalSize && hasRecords {
		return nestedQueryResult
	}
	return plainValue
}

func recordType(object map[string]any) (string, error) {
	attributes, ok := object[attributesKey].(map[string]any)
	if !ok {
		return "", unexpectedPayload("record is missing 'attributes'")
	}
	objectType, ok := attributes["type"].(string)
	if !ok {
		return "", unexpectedPayload("record attributes are missing 'type'")
	}
	return objectType, nil
}

func isBinaryField(objectType, fieldName string) bool {
	return objectType == "ContentVersion" && fieldName == "VersionData"
}

func jsonInt(value any) (int, bool) {
	switch n := value.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func describeJSON(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case json.Number, float64:
		return "a number"
	}
	return fmt.Sprintf("%T", value)
}
