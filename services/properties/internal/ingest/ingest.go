// Package ingest records contract status changes arriving from the domain
// event bus into the property status table.
package ingest

import (
	"context"
	"log/slog"

	awsevents "github.com/aws/aws-lambda-go/events"

	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

type StatusWriter interface {
	ApplyStatusChange(ctx context.Context, upd store.StatusUpdate) (bool, error)
}

type Recorder struct {
	statuses StatusWriter
}

func NewRecorder(statuses StatusWriter) *Recorder {
	return &Recorder{statuses: statuses}
}

// HandleEvent upserts the status record for a ContractStatusChanged event.
// Malformed payloads are returned as validation errors; store failures are
// logged and swallowed, so delivery is best effort and redelivery stays the
// transport's decision.
func (r *Recorder) HandleEvent(ctx context.Context, ev awsevents.CloudWatchEvent) error {
	var payload events.ContractStatusChanged
	if err := events.UnmarshalDetail(ev.Detail, &payload); err != nil {
		logging.Warn(ctx, "rejected contract status change", logging.Err(err), slog.String("event_id", ev.ID))
		return err
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("property_id", payload.PropertyID),
		slog.String("contract_id", payload.ContractID),
	)

	applied, err := r.statuses.ApplyStatusChange(ctx, store.StatusUpdate{
		PropertyID:     payload.PropertyID,
		ContractID:     payload.ContractID,
		ContractStatus: payload.ContractStatus,
		LastModifiedOn: payload.ContractLastModifiedOn,
	})
	if err != nil {
		logging.Error(ctx, "contract status write failed", logging.Err(err))
		return nil
	}
	if !applied {
		logging.Info(ctx, "stale contract status change skipped")
		return nil
	}
	logging.Info(ctx, "contract status recorded", slog.String("contract_status", string(payload.ContractStatus)))
	return nil
}
