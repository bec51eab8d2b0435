package handler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/services/contracts/internal/store"
)

type fakeContracts struct {
	createCalls  int
	approveCalls int
	getCalls     int
	lastCreate   store.Contract
	lastApprove  string
	lastGet      string
	created      bool
	approved     store.Contract
	approveOK    bool
	record       store.Contract
	createErr    error
	approveErr   error
	getErr       error
}

func (f *fakeContracts) CreateDraft(ctx context.Context, c store.Contract) (bool, error) {
	f.createCalls++
	f.lastCreate = c
	if f.createErr != nil {
		return false, f.createErr
	}
	return f.created, nil
}

func (f *fakeContracts) Approve(ctx context.Context, propertyID string, lastModifiedOn time.Time) (store.Contract, bool, error) {
	f.approveCalls++
	f.lastApprove = propertyID
	if f.approveErr != nil {
		return store.Contract{}, false, f.approveErr
	}
	return f.approved, f.approveOK, nil
}

func (f *fakeContracts) Get(ctx context.Context, propertyID string) (store.Contract, error) {
	f.getCalls++
	f.lastGet = propertyID
	if f.getErr != nil {
		return store.Contract{}, f.getErr
	}
	return f.record, nil
}

type fakeBus struct {
	publishCalls   int
	lastDetailType string
	lastDetail     events.Payload
	err            error
}

func (f *fakeBus) Publish(ctx context.Context, detailType string, detail events.Payload) error {
	f.publishCalls++
	f.lastDetailType = detailType
	f.lastDetail = detail
	return f.err
}

func command(method, body string) awsevents.SQSEvent {
	msg := awsevents.SQSMessage{MessageId: "m1", Body: body}
	if method != "" {
		msg.MessageAttributes = map[string]awsevents.SQSMessageAttribute{
			"HttpMethod": {DataType: "String", StringValue: aws.String(method)},
		}
	}
	return awsevents.SQSEvent{Records: []awsevents.SQSMessage{msg}}
}

const createBody = `{"property_id":"usa/anytown/main-street/111","seller_name":"Jane Seller","address":{"country":"usa","city":"anytown","street":"main-street","number":"111"}}`

func TestCreateWritesDraftAndPublishesStatusChange(t *testing.T) {
	contracts := &fakeContracts{created: true}
	bus := &fakeBus{}
	h := NewCommandHandler(contracts, bus)

	if err := h.HandleSQS(context.Background(), command("POST", createBody)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if contracts.createCalls != 1 {
		t.Fatalf("expected one create, got %d", contracts.createCalls)
	}
	c := contracts.lastCreate
	if c.ContractStatus != domain.ContractStatusDraft || c.Version != 1 {
		t.Fatalf("unexpected draft %+v", c)
	}
	if !strings.HasPrefix(c.ContractID, "con_") {
		t.Fatalf("unexpected contract id %q", c.ContractID)
	}
	if c.ContractCreated != c.ContractLastModifiedOn {
		t.Fatalf("expected matching timestamps, got %q and %q", c.ContractCreated, c.ContractLastModifiedOn)
	}
	if _, err := domain.ParseTimestamp(c.ContractCreated); err != nil {
		t.Fatalf("unparseable timestamp %q: %v", c.ContractCreated, err)
	}
	if bus.lastDetailType != events.DetailTypeContractStatusChanged {
		t.Fatalf("unexpected detail type %q", bus.lastDetailType)
	}
	ev, ok := bus.lastDetail.(*events.ContractStatusChanged)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.ContractID != c.ContractID || ev.PropertyID != c.PropertyID || ev.ContractStatus != domain.ContractStatusDraft {
		t.Fatalf("event does not match stored draft: %+v", ev)
	}
	if domain.FormatTimestamp(ev.ContractLastModifiedOn) != c.ContractLastModifiedOn {
		t.Fatalf("event timestamp %v does not match stored %q", ev.ContractLastModifiedOn, c.ContractLastModifiedOn)
	}
}

func TestCreateDuplicateRepublishesStoredStatus(t *testing.T) {
	stored := store.Contract{
		PropertyID:             "usa/anytown/main-street/111",
		ContractID:             "con_existing",
		ContractStatus:         domain.ContractStatusApproved,
		ContractLastModifiedOn: "2024-03-02T09:30:00Z",
		Version:                2,
	}
	contracts := &fakeContracts{created: false, record: stored}
	bus := &fakeBus{}
	h := NewCommandHandler(contracts, bus)

	if err := h.HandleSQS(context.Background(), command("POST", createBody)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if contracts.getCalls != 1 || contracts.lastGet != stored.PropertyID {
		t.Fatalf("expected stored contract read, got %+v", contracts)
	}
	if bus.publishCalls != 1 {
		t.Fatalf("expected stored status republished, got %d publishes", bus.publishCalls)
	}
	ev, ok := bus.lastDetail.(*events.ContractStatusChanged)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.ContractID != "con_existing" || ev.ContractStatus != domain.ContractStatusApproved {
		t.Fatalf("event does not match stored contract: %+v", ev)
	}
	if domain.FormatTimestamp(ev.ContractLastModifiedOn) != stored.ContractLastModifiedOn {
		t.Fatalf("event timestamp %v does not match stored %q", ev.ContractLastModifiedOn, stored.ContractLastModifiedOn)
	}
}

func TestRedeliveredCreateAfterPublishFailureEmitsEvent(t *testing.T) {
	boom := errors.New("bus down")
	contracts := &fakeContracts{created: true}
	bus := &fakeBus{err: boom}
	h := NewCommandHandler(contracts, bus)

	if err := h.HandleSQS(context.Background(), command("POST", createBody)); !errors.Is(err, boom) {
		t.Fatalf("expected publish failure to surface, got %v", err)
	}
	if bus.publishCalls != 1 {
		t.Fatalf("expected one failed publish, got %d", bus.publishCalls)
	}
	stored := contracts.lastCreate

	// Redelivery: the draft is stored now, so the create misses its condition.
	contracts.created = false
	contracts.record = stored
	bus.err = nil
	if err := h.HandleSQS(context.Background(), command("POST", createBody)); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if bus.publishCalls != 2 {
		t.Fatalf("expected redelivery to publish, got %d total attempts", bus.publishCalls)
	}
	ev, ok := bus.lastDetail.(*events.ContractStatusChanged)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.ContractID != stored.ContractID {
		t.Fatalf("expected stored contract id %q, got %q", stored.ContractID, ev.ContractID)
	}
	if domain.FormatTimestamp(ev.ContractLastModifiedOn) != stored.ContractLastModifiedOn {
		t.Fatalf("event timestamp %v does not match stored %q", ev.ContractLastModifiedOn, stored.ContractLastModifiedOn)
	}
}

func TestApprovePublishesStoredState(t *testing.T) {
	contracts := &fakeContracts{approveOK: true, approved: store.Contract{
		PropertyID:             "usa/anytown/main-street/111",
		ContractID:             "con_1",
		ContractStatus:         domain.ContractStatusApproved,
		ContractLastModifiedOn: "2024-03-02T09:30:00Z",
		Version:                2,
	}}
	bus := &fakeBus{}
	h := NewCommandHandler(contracts, bus)

	err := h.HandleSQS(context.Background(), command("PUT", `{"property_id":"usa/anytown/main-street/111"}`))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if contracts.lastApprove != "usa/anytown/main-street/111" {
		t.Fatalf("unexpected property %q", contracts.lastApprove)
	}
	ev, ok := bus.lastDetail.(*events.ContractStatusChanged)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.ContractID != "con_1" || ev.ContractStatus != domain.ContractStatusApproved {
		t.Fatalf("event does not match approved contract: %+v", ev)
	}
}

func TestApproveMissRepublishesAlreadyApprovedContract(t *testing.T) {
	stored := store.Contract{
		PropertyID:             "usa/anytown/main-street/111",
		ContractID:             "con_1",
		ContractStatus:         domain.ContractStatusApproved,
		ContractLastModifiedOn: "2024-03-02T09:30:00Z",
		Version:                2,
	}
	contracts := &fakeContracts{approveOK: false, record: stored}
	bus := &fakeBus{}
	h := NewCommandHandler(contracts, bus)

	err := h.HandleSQS(context.Background(), command("PUT", `{"property_id":"usa/anytown/main-street/111"}`))
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if bus.publishCalls != 1 {
		t.Fatalf("expected stored status republished, got %d publishes", bus.publishCalls)
	}
	ev, ok := bus.lastDetail.(*events.ContractStatusChanged)
	if !ok {
		t.Fatalf("unexpected detail %T", bus.lastDetail)
	}
	if ev.ContractStatus != domain.ContractStatusApproved || ev.ContractID != "con_1" {
		t.Fatalf("event does not match stored contract: %+v", ev)
	}
}

func TestApproveForUnknownContractSkipsWithoutEvent(t *testing.T) {
	contracts := &fakeContracts{approveOK: false, getErr: store.ErrContractNotFound}
	bus := &fakeBus{}
	h := NewCommandHandler(contracts, bus)

	err := h.HandleSQS(context.Background(), command("PUT", `{"property_id":"usa/anytown/main-street/999"}`))
	if err != nil {
		t.Fatalf("expected unknown contract to be skipped, got %v", err)
	}
	if bus.publishCalls != 0 {
		t.Fatalf("expected no event, got %d", bus.publishCalls)
	}
}

func TestPoisonCommandsAreDroppedWithoutSideEffects(t *testing.T) {
	cases := map[string]awsevents.SQSEvent{
		"missing method attribute": command("", createBody),
		"unknown method":           command("DELETE", createBody),
		"create body not json":     command("POST", "not-json"),
		"create unknown field":     command("POST", `{"property_id":"p","seller_name":"s","bogus":1}`),
		"create missing seller":    command("POST", `{"property_id":"usa/anytown/main-street/111","seller_name":"  "}`),
		"approve missing property": command("PUT", `{"property_id":""}`),
	}
	for name, event := range cases {
		contracts := &fakeContracts{created: true, approveOK: true}
		bus := &fakeBus{}
		h := NewCommandHandler(contracts, bus)
		if err := h.HandleSQS(context.Background(), event); err != nil {
			t.Fatalf("%s: expected poison message to be dropped, got %v", name, err)
		}
		if contracts.createCalls != 0 || contracts.approveCalls != 0 || bus.publishCalls != 0 {
			t.Fatalf("%s: expected no side effects, got %+v %+v", name, contracts, bus)
		}
	}
}

func TestStoreAndBusFailuresAbortTheBatch(t *testing.T) {
	boom := errors.New("throttled")

	contracts := &fakeContracts{createErr: boom}
	h := NewCommandHandler(contracts, &fakeBus{})
	if err := h.HandleSQS(context.Background(), command("POST", createBody)); !errors.Is(err, boom) {
		t.Fatalf("expected store error to surface, got %v", err)
	}

	contracts = &fakeContracts{created: true}
	h = NewCommandHandler(contracts, &fakeBus{err: boom})
	if err := h.HandleSQS(context.Background(), command("POST", createBody)); !errors.Is(err, boom) {
		t.Fatalf("expected bus error to surface, got %v", err)
	}

	contracts = &fakeContracts{created: false, getErr: boom}
	h = NewCommandHandler(contracts, &fakeBus{})
	if err := h.HandleSQS(context.Background(), command("POST", createBody)); !errors.Is(err, boom) {
		t.Fatalf("expected read-back error to surface, got %v", err)
	}
}
