package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/heroku/sf-functions-go/internal/version"
	"go.uber.org/zap"
)

// Client is the Data API surface available to functions. DataAPI implements it; tests
// of user functions can substitute their own implementation.
type Client interface {
	// Query runs the given SOQL query.
	Query(ctx context.Context, soql string) (RecordQueryResult, error)
	// QueryMore fetches the page following result. When result has no next page, an
	// empty, done result is returned without calling the org.
	QueryMore(ctx context.Context, result RecordQueryResult) (RecordQueryResult, error)
	// Create creates a record and returns its new id.
	Create(ctx context.Context, record Record) (string, error)
	// Update updates the record identified by its Id field and returns that id.
	Update(ctx context.Context, record Record) (string, error)
	// Delete deletes a record and returns its id.
	Delete(ctx context.Context, objectType, recordID string) (string, error)
	// CommitUnitOfWork executes all operations of unitOfWork atomically.
	CommitUnitOfWork(ctx context.Context, unitOfWork *UnitOfWork) (map[ReferenceID]string, error)
}

var _ Client = (*DataAPI)(nil)

// DataAPI talks to the REST API of a single org on behalf of one access token.
type DataAPI struct {
	orgDomainURL string
	apiVersion   string
	accessToken  string
	session      session
	logger       *zap.Logger
}

type Option func(*DataAPI)

// WithSession makes the client send all requests through doer. The caller keeps
// ownership of doer; the client never closes it. Without this option every request
// uses a private session that is closed once the request completes.
func WithSession(doer Doer) Option {
	return func(d *DataAPI) {
		d.session = borrowedSession(doer)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *DataAPI) {
		d.logger = logger
	}
}

func New(orgDomainURL, apiVersion, accessToken string, opts ...Option) *DataAPI {
	d := &DataAPI{
		orgDomainURL: orgDomainURL,
		apiVersion:   apiVersion,
		accessToken:  accessToken,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DataAPI) AccessToken() string {
	return d.accessToken
}

func (d *DataAPI) Query(ctx context.Context, soql string) (RecordQueryResult, error) {
	return execute[RecordQueryResult](ctx, d, &queryRecordsRequest{
		soql:     soql,
		download: d.downloadFile,
	})
}

func (d *DataAPI) QueryMore(ctx context.Context, result RecordQueryResult) (RecordQueryResult, error) {
	if result.NextRecordsURL == "" {
		return RecordQueryResult{
			Done:      true,
			TotalSize: result.TotalSize,
			Records:   []QueriedRecord{},
		}, nil
	}

	return execute[RecordQueryResult](ctx, d, &queryNextRecordsRequest{
		nextRecordsPath: result.NextRecordsURL,
		download:        d.downloadFile,
	})
}

func (d *DataAPI) Create(ctx context.Context, record Record) (string, error) {
	return execute[string](ctx, d, &createRecordRequest{record: record})
}

func (d *DataAPI) Update(ctx context.Context, record Record) (string, error) {
	request, err := newUpdateRecordRequest(record)
	if err != nil {
		return "", err
	}
	return execute[string](ctx, d, request)
}

func (d *DataAPI) Delete(ctx context.Context, objectType, recordID string) (string, error) {
	return execute[string](ctx, d, &deleteRecordRequest{
		objectType: objectType,
		recordID:   recordID,
	})
}

func (d *DataAPI) CommitUnitOfWork(ctx context.Context, unitOfWork *UnitOfWork) (map[ReferenceID]string, error) {
	return execute[map[ReferenceID]string](ctx, d, &compositeGraphRequest{
		apiVersion:  d.apiVersion,
		subRequests: unitOfWork.subRequests,
	})
}

func execute[T any](ctx context.Context, d *DataAPI, request restAPIRequest[T]) (T, error) {
	var zero T

	statusCode, body, err := d.do(ctx, request.httpMethod(), request.url(d.orgDomainURL, d.apiVersion), request.requestBody())
	if err != nil {
		return zero, err
	}

	// Some successful responses, such as 204, have no body at all.
	var jsonBody any
	if len(body) > 0 {
		jsonBody, err = decodeJSON(body)
		if err != nil {
			return zero, &UnexpectedRestAPIResponsePayloadError{
				Reason: "The server didn't respond with valid JSON",
				Err:    err,
			}
		}
	}

	return request.processResponse(ctx, statusCode, jsonBody)
}

// downloadFile fetches binary field content. The response is raw bytes on success and
// a JSON error array otherwise.
func (d *DataAPI) downloadFile(ctx context.Context, path string) ([]byte, error) {
	statusCode, body, err := d.do(ctx, http.MethodGet, d.orgDomainURL+path, nil)
	if err != nil {
		return nil, err
	}
	if statusCode == http.StatusOK {
		return body, nil
	}

	jsonBody, err := decodeJSON(body)
	if err != nil {
		return nil, &UnexpectedRestAPIResponsePayloadError{
			Reason: "The server didn't respond with valid JSON",
			Err:    err,
		}
	}
	return nil, errorFromResponse(jsonBody)
}

func (d *DataAPI) do(ctx context.Context, method, url string, body map[string]any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, &ClientError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+d.accessToken)
	req.Header.Set("Sforce-Call-Options", fmt.Sprintf("client=%s:%s", version.ClientName, version.Version))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	doer, release := d.session.acquire()
	defer release()

	resp, err := doer.Do(req)
	if err != nil {
		return 0, nil, &ClientError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &ClientError{Err: err}
	}

	d.logger.Debug("data api request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)
	return resp.StatusCode, data, nil
}

func decodeJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("invalid data after top-level value")
	}
	return value, nil
}
