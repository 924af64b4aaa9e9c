package dataapi

import "fmt"

// ReferenceID identifies an operation inside a UnitOfWork. It can be used as a field
// value to refer to the record created or updated by that operation.
type ReferenceID struct {
	ID string
}

func newReferenceID(index int) ReferenceID {
	return ReferenceID{ID: fmt.Sprintf("referenceId%d", index)}
}

// backReference is the composite graph syntax for "the id produced by this operation".
func (r ReferenceID) backReference() string {
	return fmt.Sprintf("@{%s.id}", r.ID)
}

func (r ReferenceID) String() string {
	return r.ID
}
