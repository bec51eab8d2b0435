package approval

import (
	"context"
	"errors"
	"testing"

	awsevents "github.com/aws/aws-lambda-go/events"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/services/web/internal/store"
)

type fakeListings struct {
	getCalls     int
	pendingCalls int
	listing      store.Listing
	getErr       error
	moved        bool
	markErr      error
	lastFrom     domain.ListingStatus
}

func (f *fakeListings) GetListing(ctx context.Context, addr domain.PropertyAddress) (store.Listing, error) {
	f.getCalls++
	if f.getErr != nil {
		return store.Listing{}, f.getErr
	}
	return f.listing, nil
}

func (f *fakeListings) MarkPending(ctx context.Context, addr domain.PropertyAddress, from domain.ListingStatus) (bool, error) {
	f.pendingCalls++
	f.lastFrom = from
	if f.markErr != nil {
		return false, f.markErr
	}
	return f.moved, nil
}

type fakeBus struct {
	publishCalls int
	lastDetail   events.Payload
	err          error
}

func (f *fakeBus) Publish(ctx context.Context, detailType string, detail events.Payload) error {
	f.publishCalls++
	f.lastDetail = detail
	return f.err
}

func request(body string) awsevents.SQSEvent {
	return awsevents.SQSEvent{Records: []awsevents.SQSMessage{{MessageId: "m1", Body: body}}}
}

func draftListing() store.Listing {
	return store.Listing{
		PropertyID: "usa/anytown/main-street/111",
		Country:    "usa", City: "anytown", Street: "main-street", Number: "111",
		Description: "bright corner unit",
		Images:      []string{"img1.jpg"},
		Status:      domain.ListingStatusDraft,
		Version:     1,
	}
}

func TestRequestPublishesListingAndMarksPending(t *testing.T) {
	listings := &fakeListings{listing: draftListing(), moved: true}
	bus := &fakeBus{}
	r := NewRequester(listings, bus)

	err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ev, ok := bus.lastDetail.(*events.PublicationApprovalRequested)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.PropertyID != "usa/anytown/main-street/111" || ev.Address.City != "anytown" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if len(ev.Images) != 1 || ev.Description != "bright corner unit" {
		t.Fatalf("event does not carry the listing payload: %+v", ev)
	}
	if listings.pendingCalls != 1 || listings.lastFrom != domain.ListingStatusDraft {
		t.Fatalf("expected mark pending from DRAFT, got calls=%d from=%q", listings.pendingCalls, listings.lastFrom)
	}
}

func TestRequestForListingAlreadyInPipelineIsAbsorbed(t *testing.T) {
	for _, status := range []domain.ListingStatus{domain.ListingStatusPending, domain.ListingStatusApproved} {
		l := draftListing()
		l.Status = status
		listings := &fakeListings{listing: l}
		bus := &fakeBus{}
		r := NewRequester(listings, bus)

		err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`))
		if err != nil {
			t.Fatalf("%s: unexpected: %v", status, err)
		}
		if bus.publishCalls != 0 || listings.pendingCalls != 0 {
			t.Fatalf("%s: expected no side effects, got publishes=%d marks=%d", status, bus.publishCalls, listings.pendingCalls)
		}
	}
}

func TestPoisonRequestsAreDropped(t *testing.T) {
	cases := map[string]string{
		"not json":          "not-json",
		"unknown field":     `{"property_id":"usa/anytown/main-street/111","bogus":1}`,
		"too few segments":  `{"property_id":"usa/anytown"}`,
		"empty property id": `{"property_id":""}`,
	}
	for name, body := range cases {
		listings := &fakeListings{listing: draftListing(), moved: true}
		bus := &fakeBus{}
		r := NewRequester(listings, bus)
		if err := r.HandleSQS(context.Background(), request(body)); err != nil {
			t.Fatalf("%s: expected poison message to be dropped, got %v", name, err)
		}
		if listings.getCalls != 0 || bus.publishCalls != 0 {
			t.Fatalf("%s: expected no side effects", name)
		}
	}
}

func TestUnknownListingIsSkipped(t *testing.T) {
	listings := &fakeListings{getErr: store.ErrListingNotFound}
	bus := &fakeBus{}
	r := NewRequester(listings, bus)

	err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if bus.publishCalls != 0 {
		t.Fatalf("expected no event for unknown listing")
	}
}

func TestLostRaceAfterPublishIsNotAnError(t *testing.T) {
	listings := &fakeListings{listing: draftListing(), moved: false}
	bus := &fakeBus{}
	r := NewRequester(listings, bus)

	err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if bus.publishCalls != 1 {
		t.Fatalf("expected the event to be published before the race was detected")
	}
}

func TestInfrastructureFailuresAbortTheBatch(t *testing.T) {
	boom := errors.New("throttled")

	r := NewRequester(&fakeListings{getErr: boom}, &fakeBus{})
	if err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`)); !errors.Is(err, boom) {
		t.Fatalf("expected store error to surface, got %v", err)
	}

	r = NewRequester(&fakeListings{listing: draftListing()}, &fakeBus{err: boom})
	if err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`)); !errors.Is(err, boom) {
		t.Fatalf("expected bus error to surface, got %v", err)
	}

	r = NewRequester(&fakeListings{listing: draftListing(), markErr: boom}, &fakeBus{})
	if err := r.HandleSQS(context.Background(), request(`{"property_id":"usa/anytown/main-street/111"}`)); !errors.Is(err, boom) {
		t.Fatalf("expected mark pending error to surface, got %v", err)
	}
}
