package dataapi

// Record is a Salesforce record to be created or updated.
//
// Field values may be plain JSON values, []byte for binary fields (sent base64 encoded)
// or a ReferenceID pointing at another operation inside the same UnitOfWork.
type Record struct {
	Type   string
	Fields map[string]any
}

// QueriedRecord is a record returned by a query.
//
// Parent lookups (e.g. Owner) are stored as QueriedRecord values in Fields, while
// relationship sub-queries (e.g. Contacts) are stored in SubQueryResults.
type QueriedRecord struct {
	Record
	SubQueryResults map[string]RecordQueryResult
}

// RecordQueryResult is one page of a query result.
type RecordQueryResult struct {
	Done bool
	// TotalSize is the number of records matched by the query, not len(Records).
	TotalSize int
	Records   []QueriedRecord
	// NextRecordsURL is empty when there are no further pages.
	NextRecordsURL string
}
