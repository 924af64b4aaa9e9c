package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	CallOptions   string
	Body          map[string]any
}

// fakeOrg serves canned responses keyed by "METHOD path" and records what it receives.
type fakeOrg struct {
	t         *testing.T
	server    *httptest.Server
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func newFakeOrg(t *testing.T, responses map[string]fakeResponse) *fakeOrg {
	org := &fakeOrg{t: t, responses: responses}
	org.server = httptest.NewServer(http.HandlerFunc(org.handle))
	t.Cleanup(org.server.Close)
	return org
}

func (o *fakeOrg) handle(w http.ResponseWriter, r *http.Request) {
	recorded := recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		CallOptions:   r.Header.Get("Sforce-Call-Options"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		assert.NoError(o.t, json.Unmarshal(data, &recorded.Body))
	}

	o.mu.Lock()
	o.requests = append(o.requests, recorded)
	o.mu.Unlock()

	response, ok := o.responses[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `[{"message": "The requested resource does not exist", "errorCode": "NOT_FOUND"}]`)
		return
	}
	w.WriteHeader(response.status)
	_, _ = io.WriteString(w, response.body)
}

func (o *fakeOrg) dataAPI(opts ...Option) *DataAPI {
	return New(o.server.URL, "53.0", "EXAMPLE-TOKEN", opts...)
}

func (o *fakeOrg) recorded() []recordedRequest {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]recordedRequest(nil), o.requests...)
}

func TestDataAPICreate(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"POST /services/data/v53.0/sobjects/Movie__c": {status: 201, body: `{"id": "a00B000000FSkcvIAD", "success": true, "errors": []}`},
	})

	id, err := org.dataAPI().Create(context.Background(), Record{
		Type:   "Movie__c",
		Fields: map[string]any{"Name": "X", "Rating__c": "Excellent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a00B000000FSkcvIAD", id)

	requests := org.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, "Bearer EXAMPLE-TOKEN", requests[0].Authorization)
	assert.Regexp(t, `^client=sf-functions-go:\S+$`, requests[0].CallOptions)
	assert.Equal(t, map[string]any{"Name": "X", "Rating__c": "Excellent"}, requests[0].Body)
}

func TestDataAPICreateWithBinaryData(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"POST /services/data/v53.0/sobjects/ContentVersion": {status: 201, body: `{"id": "0687S00000AX5WVQA1", "success": true, "errors": []}`},
	})

	id, err := org.dataAPI().Create(context.Background(), Record{
		Type: "ContentVersion",
		Fields: map[string]any{
			"Title":        "File for testing",
			"PathOnClient": "file.bin",
			"VersionData":  []byte{0x04, 0x08, 0x15, 0x16, 0x23, 0x42},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "0687S00000AX5WVQA1", id)
	assert.Equal(t, "BAgVFiNC", org.recorded()[0].Body["VersionData"])
}

func TestDataAPIDeleteError(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"DELETE /services/data/v53.0/sobjects/Account/001B000001Lp1G2IAJ": {
			status: 400,
			body:   `[{"message":"entity is deleted","errorCode":"ENTITY_IS_DELETED","fields":[]}]`,
		},
	})

	_, err := org.dataAPI().Delete(context.Background(), "Account", "001B000001Lp1G2IAJ")

	var restAPIError *SalesforceRestAPIError
	require.ErrorAs(t, err, &restAPIError)
	assert.Equal(t, []InnerSalesforceRestAPIError{
		{Message: "entity is deleted", ErrorCode: "ENTITY_IS_DELETED", Fields: []string{}},
	}, restAPIError.APIErrors)
}

func TestDataAPIUpdateAndDelete(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"PATCH /services/data/v53.0/sobjects/Movie__c/a01B0000009gSrFIAU":  {status: 204},
		"DELETE /services/data/v53.0/sobjects/Account/001B000001Lp1FxIAJ": {status: 204},
	})
	dataAPI := org.dataAPI()

	id, err := dataAPI.Update(context.Background(), Record{
		Type:   "Movie__c",
		Fields: map[string]any{"Id": "a01B0000009gSrFIAU", "ReleaseDate__c": "1980-05-21"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a01B0000009gSrFIAU", id)

	id, err = dataAPI.Delete(context.Background(), "Account", "001B000001Lp1FxIAJ")
	require.NoError(t, err)
	assert.Equal(t, "001B000001Lp1FxIAJ", id)

	requests := org.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, map[string]any{"ReleaseDate__c": "1980-05-21"}, requests[0].Body)
	assert.Nil(t, requests[1].Body)
}

func TestDataAPIUpdateWithoutIDDoesNotCallOrg(t *testing.T) {
	org := newFakeOrg(t, nil)

	_, err := org.dataAPI().Update(context.Background(), Record{
		Type:   "Movie__c",
		Fields: map[string]any{"ReleaseDate__c": "1980-05-21"},
	})

	var missingField *MissingFieldError
	assert.ErrorAs(t, err, &missingField)
	assert.Empty(t, org.recorded())
}

func TestDataAPIQuery(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"GET /services/data/v53.0/query": {status: 200, body: `{
			"totalSize": 10000,
			"done": false,
			"nextRecordsUrl": "/services/data/v53.0/query/01gB000000OdEBcIAN-2000",
			"records": [{"attributes": {"type": "Account"}, "Name": "Acme"}]
		}`},
		"GET /services/data/v53.0/query/01gB000000OdEBcIAN-2000": {status: 200, body: `{
			"totalSize": 10000,
			"done": true,
			"records": [{"attributes": {"type": "Account"}, "Name": "Global Media"}]
		}`},
	})
	dataAPI := org.dataAPI()

	first, err := dataAPI.Query(context.Background(), "SELECT Name FROM Account")
	require.NoError(t, err)
	assert.False(t, first.Done)
	assert.Equal(t, "Acme", first.Records[0].Fields["Name"])

	second, err := dataAPI.QueryMore(context.Background(), first)
	require.NoError(t, err)
	assert.True(t, second.Done)
	assert.Equal(t, 10000, second.TotalSize)
	assert.Equal(t, "Global Media", second.Records[0].Fields["Name"])

	requests := org.recorded()
	require.Len(t, requests, 2)
	assert.Equal(t, "q=SELECT+Name+FROM+Account", requests[0].RawQuery)
	assert.Equal(t, "/services/data/v53.0/query/01gB000000OdEBcIAN-2000", requests[1].Path)
}

func TestDataAPIQueryMoreWithoutNextPage(t *testing.T) {
	org := newFakeOrg(t, nil)

	result, err := org.dataAPI().QueryMore(context.Background(), RecordQueryResult{
		Done:      true,
		TotalSize: 5,
		Records:   []QueriedRecord{{Record: Record{Type: "Account"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, RecordQueryResult{Done: true, TotalSize: 5, Records: []QueriedRecord{}}, result)
	assert.Empty(t, org.recorded())
}

func TestDataAPIQueryWithBinaryData(t *testing.T) {
	content := []byte{0x04, 0x08, 0x15, 0x16, 0x23, 0x42}
	var downloadAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/services/data/v53.0/query", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"totalSize": 1, "done": true, "records": [{
			"attributes": {"type": "ContentVersion"},
			"VersionData": "/services/data/v53.0/sobjects/ContentVersion/0687S00000AX5WVQA1/VersionData"
		}]}`)
	})
	mux.HandleFunc("/services/data/v53.0/sobjects/ContentVersion/0687S00000AX5WVQA1/VersionData", func(w http.ResponseWriter, r *http.Request) {
		downloadAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(content)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := New(server.URL, "53.0", "EXAMPLE-TOKEN").Query(context.Background(), "SELECT VersionData FROM ContentVersion")
	require.NoError(t, err)

	assert.Equal(t, content, result.Records[0].Fields["VersionData"])
	assert.Equal(t, "Bearer EXAMPLE-TOKEN", downloadAuth)
}

func TestDataAPICommitUnitOfWork(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"POST /services/data/v53.0/composite/graph": {status: 200, body: `{"graphs": [{
			"graphId": "graph0",
			"graphResponse": {"compositeResponse": [
				{"referenceId": "referenceId0", "httpStatusCode": 201, "body": {"id": "a03B0000007BhQQIA0", "success": true, "errors": []}},
				{"referenceId": "referenceId1", "httpStatusCode": 201, "body": {"id": "a00B000000FSkioIAD", "success": true, "errors": []}}
			]},
			"isSuccessful": true
		}]}`},
	})

	unitOfWork := NewUnitOfWork()
	franchise := unitOfWork.RegisterCreate(Record{Type: "Franchise__c", Fields: map[string]any{"Name": "Star Wars"}})
	movie := unitOfWork.RegisterCreate(Record{Type: "Movie__c", Fields: map[string]any{
		"Name":         "Star Wars Episode I - A Phantom Menace",
		"Franchise__c": franchise,
	}})

	result, err := org.dataAPI().CommitUnitOfWork(context.Background(), unitOfWork)
	require.NoError(t, err)
	assert.Equal(t, map[ReferenceID]string{
		franchise: "a03B0000007BhQQIA0",
		movie:     "a00B000000FSkioIAD",
	}, result)

	requests := org.recorded()
	require.Len(t, requests, 1)
	graphs := requests[0].Body["graphs"].([]any)
	compositeRequest := graphs[0].(map[string]any)["compositeRequest"].([]any)
	require.Len(t, compositeRequest, 2)
	assert.Equal(t, "@{referenceId0.id}", compositeRequest[1].(map[string]any)["body"].(map[string]any)["Franchise__c"])
}

func TestDataAPIInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>Not JSON</html>")
	}))
	defer server.Close()

	_, err := New(server.URL, "53.0", "EXAMPLE-TOKEN").Query(context.Background(), "SELECT Name FROM FruitVendor__c")

	var payloadErr *UnexpectedRestAPIResponsePayloadError
	require.ErrorAs(t, err, &payloadErr)
	assert.Contains(t, err.Error(), "The server didn't respond with valid JSON: ")
	assert.ErrorIs(t, err, ErrDataAPI)
}

func TestDataAPIClientError(t *testing.T) {
	_, err := New("", "", "").Query(context.Background(), "SELECT Name FROM Account")

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Contains(t, err.Error(), "An error occurred while making the request: ")
}

func TestDataAPIClientErrorOnClosedServer(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := New(server.URL, "53.0", "EXAMPLE-TOKEN").Delete(context.Background(), "Account", "001")

	var clientErr *ClientError
	assert.ErrorAs(t, err, &clientErr)
}

type countingDoer struct {
	calls int
	doer  Doer
}

func (c *countingDoer) Do(req *http.Request) (*http.Response, error) {
	c.calls++
	return c.doer.Do(req)
}

func TestDataAPIUsesBorrowedSession(t *testing.T) {
	org := newFakeOrg(t, map[string]fakeResponse{
		"DELETE /services/data/v53.0/sobjects/Account/001B000001Lp1FxIAJ": {status: 204},
	})
	shared := &countingDoer{doer: org.server.Client()}
	dataAPI := org.dataAPI(WithSession(shared))

	for i := 0; i < 3; i++ {
		_, err := dataAPI.Delete(context.Background(), "Account", "001B000001Lp1FxIAJ")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, shared.calls)

	// The shared session is still usable after the client is done with it.
	_, err := dataAPI.Delete(context.Background(), "Account", "001B000001Lp1FxIAJ")
	assert.NoError(t, err)
}

func TestDataAPIBorrowedSessionError(t *testing.T) {
	failure := errors.New("dial tcp: connection refused")
	dataAPI := New("https://example.my.salesforce.com", "53.0", "EXAMPLE-TOKEN", WithSession(failingDoer{err: failure}))

	_, err := dataAPI.Create(context.Background(), Record{Type: "Account", Fields: map[string]any{"Name": "Acme"}})

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.ErrorIs(t, err, failure)
}

type failingDoer struct {
	err error
}

func (f failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, f.err
}
