package approval

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

type TokenWriter interface {
	RegisterWaitToken(ctx context.Context, propertyID, token string) error
}

type Registrar struct {
	statuses TokenWriter
}

func NewRegistrar(statuses TokenWriter) *Registrar {
	return &Registrar{statuses: statuses}
}

type RegisterInput struct {
	PropertyID string `json:"property_id"`
	TaskToken  string `json:"task_token"`
}

// Register records the workflow's callback token against the property's
// status record, whatever the current status: if the contract is already
// APPROVED, the token write itself flows through the change stream and the
// sync consumer resumes the execution immediately. This is the
// register-intent half of the wait protocol; Syncer is the confirm half.
func (r *Registrar) Register(ctx context.Context, in RegisterInput) error {
	propertyID := strings.TrimSpace(in.PropertyID)
	if propertyID == "" {
		return &domain.ValidationError{Field: "property_id", Reason: "required"}
	}
	if strings.TrimSpace(in.TaskToken) == "" {
		return &domain.ValidationError{Field: "task_token", Reason: "required"}
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", propertyID))
	if err := r.statuses.RegisterWaitToken(ctx, propertyID, in.TaskToken); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return &ContractStatusNotFoundError{PropertyID: propertyID}
		}
		return err
	}
	logging.Info(ctx, "approval wait token registered")
	return nil
}
