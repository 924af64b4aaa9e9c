package dataapi

type subRequest struct {
	referenceID ReferenceID
	request     restAPIRequest[string]
}

// UnitOfWork collects create, update and delete operations that are committed
// together with DataAPI.CommitUnitOfWork. Either all operations succeed or none do.
//
// A UnitOfWork is not safe for concurrent use and should not be committed twice.
type UnitOfWork struct {
	subRequests []subRequest
}

func NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{}
}

// RegisterCreate registers the creation of a record. The returned ReferenceID can be
// used as a field value in later operations of the same unit.
func (u *UnitOfWork) RegisterCreate(record Record) ReferenceID {
	return u.register(&createRecordRequest{record: record})
}

// RegisterUpdate registers an update of an existing record. The record must contain
// an Id field.
func (u *UnitOfWork) RegisterUpdate(record Record) (ReferenceID, error) {
	request, err := newUpdateRecordRequest(record)
	if err != nil {
		return ReferenceID{}, err
	}
	return u.register(request), nil
}

// RegisterDelete registers the deletion of the record with the given type and id.
func (u *UnitOfWork) RegisterDelete(objectType, recordID string) ReferenceID {
	return u.register(&deleteRecordRequest{objectType: objectType, recordID: recordID})
}

// Len returns the number of registered operations.
func (u *UnitOfWork) Len() int {
	return len(u.subRequests)
}

func (u *UnitOfWork) register(request restAPIRequest[string]) ReferenceID {
	referenceID := newReferenceID(len(u.subRequests))
	u.subRequests = append(u.subRequests, subRequest{
		referenceID: referenceID,
		request:     request,
	})
	return referenceID
}
