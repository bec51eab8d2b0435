// Package handler consumes contract commands from the command queue and
// applies them to the contract store. Commands are plain HTTP-shaped
// messages: the HttpMethod attribute selects create (POST) or approve (PUT).
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/contracts/internal/store"
)

type ContractStore interface {
	CreateDraft(ctx context.Context, c store.Contract) (bool, error)
	Approve(ctx context.Context, propertyID string, lastModifiedOn time.Time) (store.Contract, bool, error)
	Get(ctx context.Context, propertyID string) (store.Contract, error)
}

type Publisher interface {
	Publish(ctx context.Context, detailType string, detail events.Payload) error
}

type CommandHandler struct {
	contracts ContractStore
	bus       Publisher
}

func NewCommandHandler(contracts ContractStore, bus Publisher) *CommandHandler {
	return &CommandHandler{contracts: contracts, bus: bus}
}

type createContractCommand struct {
	PropertyID string                 `json:"property_id"`
	SellerName string                 `json:"seller_name"`
	Address    domain.PropertyAddress `json:"address"`
}

type approveContractCommand struct {
	PropertyID string `json:"property_id"`
}

// HandleSQS processes the queue batch. Malformed messages are logged and
// dropped so they cannot poison the queue; store and bus failures abort the
// batch and the message is redelivered.
func (h *CommandHandler) HandleSQS(ctx context.Context, event awsevents.SQSEvent) error {
	for _, msg := range event.Records {
		if err := h.handleMessage(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (h *CommandHandler) handleMessage(ctx context.Context, msg awsevents.SQSMessage) error {
	ctx = logging.WithAttrs(ctx, slog.String("message_id", msg.MessageId))

	attr, ok := msg.MessageAttributes["HttpMethod"]
	if !ok || attr.StringValue == nil {
		logging.Warn(ctx, "contract command without HttpMethod attribute skipped")
		return nil
	}

	switch method := *attr.StringValue; method {
	case "POST":
		return h.create(ctx, msg.Body)
	case "PUT":
		return h.approve(ctx, msg.Body)
	default:
		logging.Warn(ctx, "contract command with unknown method skipped", slog.String("method", method))
		return nil
	}
}

func (h *CommandHandler) create(ctx context.Context, body string) error {
	var cmd createContractCommand
	if err := decodeCommand(body, &cmd); err != nil {
		logging.Warn(ctx, "malformed create contract command skipped", logging.Err(err))
		return nil
	}
	cmd.PropertyID = strings.TrimSpace(cmd.PropertyID)
	cmd.SellerName = strings.TrimSpace(cmd.SellerName)
	if cmd.PropertyID == "" || cmd.SellerName == "" {
		logging.Warn(ctx, "create contract command missing property_id or seller_name, skipped")
		return nil
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", cmd.PropertyID))

	now := time.Now().UTC().Truncate(time.Second)
	contract := store.Contract{
		PropertyID:             cmd.PropertyID,
		ContractID:             "con_" + uuid.NewString(),
		Address:                cmd.Address,
		SellerName:             cmd.SellerName,
		ContractStatus:         domain.ContractStatusDraft,
		ContractCreated:        domain.FormatTimestamp(now),
		ContractLastModifiedOn: domain.FormatTimestamp(now),
		Version:                1,
	}

	created, err := h.contracts.CreateDraft(ctx, contract)
	if err != nil {
		return err
	}
	if !created {
		logging.Warn(ctx, "contract already exists, republishing stored status")
		current, err := h.contracts.Get(ctx, cmd.PropertyID)
		if err != nil {
			return err
		}
		return h.republish(ctx, current)
	}

	if err := h.bus.Publish(ctx, events.DetailTypeContractStatusChanged, &events.ContractStatusChanged{
		ContractID:             contract.ContractID,
		PropertyID:             contract.PropertyID,
		ContractStatus:         contract.ContractStatus,
		ContractLastModifiedOn: now,
	}); err != nil {
		return err
	}
	logging.Info(ctx, "contract draft created", slog.String("contract_id", contract.ContractID))
	return nil
}

func (h *CommandHandler) approve(ctx context.Context, body string) error {
	var cmd approveContractCommand
	if err := decodeCommand(body, &cmd); err != nil {
		logging.Warn(ctx, "malformed approve contract command skipped", logging.Err(err))
		return nil
	}
	cmd.PropertyID = strings.TrimSpace(cmd.PropertyID)
	if cmd.PropertyID == "" {
		logging.Warn(ctx, "approve contract command missing property_id, skipped")
		return nil
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", cmd.PropertyID))

	now := time.Now().UTC().Truncate(time.Second)
	contract, approved, err := h.contracts.Approve(ctx, cmd.PropertyID, now)
	if err != nil {
		return err
	}
	if !approved {
		current, err := h.contracts.Get(ctx, cmd.PropertyID)
		if errors.Is(err, store.ErrContractNotFound) {
			logging.Warn(ctx, "approve for unknown contract skipped")
			return nil
		}
		if err != nil {
			return err
		}
		logging.Warn(ctx, "contract already approved, republishing stored status")
		return h.republish(ctx, current)
	}

	if err := h.bus.Publish(ctx, events.DetailTypeContractStatusChanged, &events.ContractStatusChanged{
		ContractID:             contract.ContractID,
		PropertyID:             contract.PropertyID,
		ContractStatus:         contract.ContractStatus,
		ContractLastModifiedOn: now,
	}); err != nil {
		return err
	}
	logging.Info(ctx, "contract approved", slog.String("contract_id", contract.ContractID))
	return nil
}

// republish re-emits the stored contract state after a conditional miss. The
// original delivery can die between the applied write and the publish, and
// the redelivered command then misses the condition, so the miss path must
// still put the current status on the bus. Downstream consumers absorb the
// duplicate when nothing was lost.
func (h *CommandHandler) republish(ctx context.Context, contract store.Contract) error {
	lastModified, err := domain.ParseTimestamp(contract.ContractLastModifiedOn)
	if err != nil {
		return fmt.Errorf("republish contract status: %w", err)
	}
	if err := h.bus.Publish(ctx, events.DetailTypeContractStatusChanged, &events.ContractStatusChanged{
		ContractID:             contract.ContractID,
		PropertyID:             contract.PropertyID,
		ContractStatus:         contract.ContractStatus,
		ContractLastModifiedOn: lastModified,
	}); err != nil {
		return err
	}
	logging.Info(ctx, "contract status republished", slog.String("contract_id", contract.ContractID))
	return nil
}

func decodeCommand(body string, dst any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
