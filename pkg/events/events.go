// Package events defines the domain event contracts carried on the platform
// event bus: one payload type per detail-type, validated at the consumer
// boundary so malformed shapes are rejected before any business logic runs.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/propertylane/propertylane/pkg/domain"
)

const (
	SourceContracts  = "propertylane.contracts"
	SourceProperties = "propertylane.properties"
	SourceWeb        = "propertylane.web"
)

const (
	DetailTypeContractStatusChanged          = "ContractStatusChanged"
	DetailTypePublicationApprovalRequested   = "PublicationApprovalRequested"
	DetailTypePublicationEvaluationCompleted = "PublicationEvaluationCompleted"
)

type Payload interface {
	Validate() error
}

type ContractStatusChanged struct {
	ContractID             string                `json:"contract_id"`
	PropertyID             string                `json:"property_id"`
	ContractStatus         domain.ContractStatus `json:"contract_status"`
	ContractLastModifiedOn time.Time             `json:"contract_last_modified_on"`
}

func (e ContractStatusChanged) Validate() error {
	if e.ContractID == "" {
		return &domain.ValidationError{Field: "contract_id", Reason: "required"}
	}
	if e.PropertyID == "" {
		return &domain.ValidationError{Field: "property_id", Reason: "required"}
	}
	if e.ContractStatus == "" {
		return &domain.ValidationError{Field: "contract_status", Reason: "required"}
	}
	if e.ContractLastModifiedOn.IsZero() {
		return &domain.ValidationError{Field: "contract_last_modified_on", Reason: "required"}
	}
	return nil
}

type PublicationApprovalRequested struct {
	PropertyID  string                 `json:"property_id"`
	Address     domain.PropertyAddress `json:"address"`
	Description string                 `json:"description"`
	Images      []string               `json:"images"`
	Status      domain.ListingStatus   `json:"status"`
}

func (e PublicationApprovalRequested) Validate() error {
	if e.PropertyID == "" {
		return &domain.ValidationError{Field: "property_id", Reason: "required"}
	}
	if _, err := domain.ParsePropertyID(e.PropertyID); err != nil {
		return err
	}
	return nil
}

type PublicationEvaluationCompleted struct {
	PropertyID       string                  `json:"property_id"`
	EvaluationResult domain.EvaluationResult `json:"evaluation_result"`
}

func (e PublicationEvaluationCompleted) Validate() error {
	if e.PropertyID == "" {
		return &domain.ValidationError{Field: "property_id", Reason: "required"}
	}
	if _, err := domain.ParsePropertyID(e.PropertyID); err != nil {
		return err
	}
	if !domain.IsValidEvaluationResult(e.EvaluationResult) {
		return &domain.ValidationError{
			Field:  "evaluation_result",
			Reason: fmt.Sprintf("must be %s or %s", domain.EvaluationApproved, domain.EvaluationDeclined),
		}
	}
	return nil
}

// UnmarshalDetail decodes an event detail strictly (unknown fields rejected)
// and validates it. dst must be a pointer whose element implements Payload.
func UnmarshalDetail(detail []byte, dst Payload) error {
	dec := json.NewDecoder(bytes.NewReader(detail))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "detail", Reason: err.Error()}
	}
	return dst.Validate()
}
