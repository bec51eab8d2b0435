// Package approval holds the workflow-facing handlers of the contract
// approval choreography: the existence check the state machine runs before
// anything else, the two-phase wait protocol (register the callback token,
// then confirm from the status table's change stream), and the stream
// consumer that resumes suspended executions.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

// ContractStatusNotFoundError is the distinguished not-found signal. Its type
// name is part of the contract with the workflow engine, which catches it by
// error type to branch into the contract-creation flow.
type ContractStatusNotFoundError struct {
	PropertyID string
}

func (e *ContractStatusNotFoundError) Error() string {
	return fmt.Sprintf("no contract on file for property %q", e.PropertyID)
}

type StatusReader interface {
	GetStatus(ctx context.Context, propertyID string) (store.ContractStatusRecord, error)
}

type Checker struct {
	statuses StatusReader
}

func NewChecker(statuses StatusReader) *Checker {
	return &Checker{statuses: statuses}
}

type CheckInput struct {
	PropertyID string `json:"property_id"`
}

// Check returns the status record verbatim, or ContractStatusNotFoundError
// when no record exists or the record carries no contract id. Read only.
func (c *Checker) Check(ctx context.Context, in CheckInput) (store.ContractStatusRecord, error) {
	propertyID := strings.TrimSpace(in.PropertyID)
	if propertyID == "" {
		return store.ContractStatusRecord{}, &domain.ValidationError{Field: "property_id", Reason: "required"}
	}
	rec, err := c.statuses.GetStatus(ctx, propertyID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return store.ContractStatusRecord{}, &ContractStatusNotFoundError{PropertyID: propertyID}
		}
		return store.ContractStatusRecord{}, err
	}
	if rec.ContractID == "" {
		return store.ContractStatusRecord{}, &ContractStatusNotFoundError{PropertyID: propertyID}
	}
	return rec, nil
}
