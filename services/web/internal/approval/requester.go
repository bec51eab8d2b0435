// Package approval turns seller approval requests into publication workflow
// events, guarding against duplicate requests for the same listing.
package approval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	awsevents "github.com/aws/aws-lambda-go/events"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

type ListingStore interface {
	GetListing(ctx context.Context, addr domain.PropertyAddress) (store.Listing, error)
	MarkPending(ctx context.Context, addr domain.PropertyAddress, from domain.ListingStatus) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, detailType string, detail events.Payload) error
}

type Requester struct {
	listings ListingStore
	bus      Publisher
}

func NewRequester(listings ListingStore, bus Publisher) *Requester {
	return &Requester{listings: listings, bus: bus}
}

type approvalRequest struct {
	PropertyID string `json:"property_id"`
}

// HandleSQS processes approval requests. Requests for listings already in
// the pipeline are absorbed; store and bus failures abort the batch so the
// message is redelivered.
func (r *Requester) HandleSQS(ctx context.Context, event awsevents.SQSEvent) error {
	for _, msg := range event.Records {
		if err := r.handleMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (r *Requester) handleMessage(ctx context.Context, msg awsevents.SQSMessage) error {
	ctx = logging.WithAttrs(ctx, slog.String("message_id", msg.MessageId))

	var req approvalRequest
	dec := json.NewDecoder(bytes.NewReader([]byte(msg.Body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logging.Warn(ctx, "malformed approval request skipped", logging.Err(err))
		return nil
	}

	addr, err := domain.ParsePropertyID(req.PropertyID)
	if err != nil {
		logging.Warn(ctx, "approval request with invalid property id skipped",
			slog.String("property_id", req.PropertyID), logging.Err(err))
		return nil
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", req.PropertyID))

	listing, err := r.listings.GetListing(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrListingNotFound) {
			logging.Warn(ctx, "approval requested for unknown listing, skipped")
			return nil
		}
		return err
	}
	if listing.Status == domain.ListingStatusPending || listing.Status == domain.ListingStatusApproved {
		logging.Info(ctx, "listing already in the approval pipeline, request skipped",
			slog.String("status", string(listing.Status)))
		return nil
	}

	err = r.bus.Publish(ctx, events.DetailTypePublicationApprovalRequested, &events.PublicationApprovalRequested{
		PropertyID:  listing.PropertyID,
		Address:     domain.PropertyAddress{Country: listing.Country, City: listing.City, Street: listing.Street, Number: listing.Number},
		Description: listing.Description,
		Images:      listing.Images,
		Status:      listing.Status,
	})
	if err != nil {
		return err
	}

	moved, err := r.listings.MarkPending(ctx, addr, listing.Status)
	if err != nil {
		return err
	}
	if !moved {
		logging.Warn(ctx, "concurrent approval request won, listing left as is")
		return nil
	}
	logging.Info(ctx, "publication approval requested")
	return nil
}
