// Package projection applies publication evaluation outcomes to the search
// projection rows.
package projection

import (
	"context"
	"log/slog"

	awsevents "github.com/aws/aws-lambda-go/events"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
	"github.com/propertylane/propertylane/pkg/logging"
)

type EvaluationWriter interface {
	SetEvaluation(ctx context.Context, addr domain.PropertyAddress, result domain.EvaluationResult) (bool, error)
}

type Updater struct {
	listings EvaluationWriter
}

func NewUpdater(listings EvaluationWriter) *Updater {
	return &Updater{listings: listings}
}

// HandleEvent writes the evaluation outcome of a PublicationEvaluationCompleted
// event into the listing's status. Malformed payloads are returned as
// validation errors; store failures are logged and swallowed, matching the
// best-effort policy of the other bus consumers.
func (u *Updater) HandleEvent(ctx context.Context, ev awsevents.CloudWatchEvent) error {
	var payload events.PublicationEvaluationCompleted
	if err := events.UnmarshalDetail(ev.Detail, &payload); err != nil {
		logging.Warn(ctx, "rejected publication evaluation", logging.Err(err), slog.String("event_id", ev.ID))
		return err
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", payload.PropertyID))

	addr, err := domain.ParsePropertyID(payload.PropertyID)
	if err != nil {
		logging.Warn(ctx, "rejected publication evaluation", logging.Err(err))
		return err
	}

	ok, err := u.listings.SetEvaluation(ctx, addr, payload.EvaluationResult)
	if err != nil {
		logging.Error(ctx, "listing status write failed", logging.Err(err))
		return nil
	}
	if !ok {
		logging.Warn(ctx, "no listing row for evaluated property, skipped")
		return nil
	}
	logging.Info(ctx, "listing evaluation recorded", slog.String("status", string(payload.EvaluationResult)))
	return nil
}
