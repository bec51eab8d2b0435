package domain

import (
	"fmt"
	"strings"
)

type ContractStatus string

const (
	ContractStatusDraft    ContractStatus = "DRAFT"
	ContractStatusApproved ContractStatus = "APPROVED"
)

type ListingStatus string

const (
	ListingStatusDraft    ListingStatus = "DRAFT"
	ListingStatusPending  ListingStatus = "PENDING"
	ListingStatusApproved ListingStatus = "APPROVED"
	ListingStatusDeclined ListingStatus = "DECLINED"
)

type EvaluationResult string

const (
	EvaluationApproved EvaluationResult = "APPROVED"
	EvaluationDeclined EvaluationResult = "DECLINED"
)

func IsValidEvaluationResult(r EvaluationResult) bool {
	switch r {
	case EvaluationApproved, EvaluationDeclined:
		return true
	default:
		return false
	}
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s invalid: %s", e.Field, e.Reason)
}

// PropertyAddress is the decomposed form of a property identifier. Identifiers
// are opaque keys everywhere except the search projection, which needs the
// country/city/street/number segments for its composite keys.
type PropertyAddress struct {
	Country string `json:"country" dynamodbav:"country"`
	City    string `json:"city" dynamodbav:"city"`
	Street  string `json:"street" dynamodbav:"street"`
	Number  string `json:"number" dynamodbav:"number"`
}

func ParsePropertyID(id string) (PropertyAddress, error) {
	parts := strings.Split(strings.TrimSpace(id), "/")
	if len(parts) < 4 {
		return PropertyAddress{}, &ValidationError{
			Field:  "property_id",
			Reason: fmt.Sprintf("expected at least 4 segments like country/city/street/number, got %d", len(parts)),
		}
	}
	addr := PropertyAddress{
		Country: strings.TrimSpace(parts[0]),
		City:    strings.TrimSpace(parts[1]),
		Street:  strings.TrimSpace(parts[2]),
		Number:  strings.TrimSpace(parts[3]),
	}
	if addr.Country == "" || addr.City == "" || addr.Street == "" || addr.Number == "" {
		return PropertyAddress{}, &ValidationError{Field: "property_id", Reason: "empty segment"}
	}
	return addr, nil
}

func (a PropertyAddress) PropertyID() string {
	return strings.Join([]string{a.Country, a.City, a.Street, a.Number}, "/")
}
