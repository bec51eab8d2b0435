package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/logging"
	"github.com/propertylane/propertylane/services/properties/internal/store"
)

type WorkflowSignaler interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

var _ WorkflowSignaler = (*sfn.Client)(nil)

type TokenClearer interface {
	ClearWaitToken(ctx context.Context, propertyID, token string) (bool, error)
}

// Syncer is the confirm half of the wait protocol. It watches the status
// table's change stream and, once a record carries both a callback token and
// an APPROVED contract, resumes the suspended workflow execution and clears
// exactly that token.
type Syncer struct {
	workflow WorkflowSignaler
	statuses TokenClearer
}

func NewSyncer(workflow WorkflowSignaler, statuses TokenClearer) *Syncer {
	return &Syncer{workflow: workflow, statuses: statuses}
}

func (s *Syncer) HandleStream(ctx context.Context, ev events.DynamoDBEvent) error {
	for _, rec := range ev.Records {
		if err := s.handleRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) handleRecord(ctx context.Context, rec events.DynamoDBEventRecord) error {
	if rec.EventName == "REMOVE" {
		return nil
	}
	img := rec.Change.NewImage
	if len(img) == 0 {
		return nil
	}
	token := stringAttr(img, "sfn_wait_approved_task_token")
	if token == "" {
		return nil
	}
	status := domain.ContractStatus(stringAttr(img, "contract_status"))
	if status != domain.ContractStatusApproved {
		return nil
	}

	record := store.ContractStatusRecord{
		PropertyID:             stringAttr(img, "property_id"),
		ContractID:             stringAttr(img, "contract_id"),
		ContractStatus:         status,
		ContractLastModifiedOn: stringAttr(img, "contract_last_modified_on"),
		WaitApprovedTaskToken:  token,
		Version:                intAttr(img, "version"),
	}
	ctx = logging.WithAttrs(ctx, slog.String("property_id", record.PropertyID))

	output, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal task output: %w", err)
	}
	_, err = s.workflow.SendTaskSuccess(ctx, &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(token),
		Output:    aws.String(string(output)),
	})
	switch {
	case err == nil:
		logging.Info(ctx, "suspended workflow resumed")
	case isStaleToken(err):
		// Execution already moved on (timed out or resumed by an earlier
		// delivery). Clearing the dead token below is all that is left to do.
		logging.Warn(ctx, "workflow rejected task token", logging.Err(err))
	default:
		return fmt.Errorf("send task success: %w", err)
	}

	cleared, err := s.statuses.ClearWaitToken(ctx, record.PropertyID, token)
	if err != nil {
		return fmt.Errorf("clear wait token: %w", err)
	}
	if !cleared {
		logging.Info(ctx, "wait token superseded before clear")
	}
	return nil
}

func isStaleToken(err error) bool {
	var timedOut *sfntypes.TaskTimedOut
	var doesNotExist *sfntypes.TaskDoesNotExist
	var invalidToken *sfntypes.InvalidToken
	return errors.As(err, &timedOut) || errors.As(err, &doesNotExist) || errors.As(err, &invalidToken)
}

func stringAttr(img map[string]events.DynamoDBAttributeValue, key string) string {
	av, ok := img[key]
	if !ok || av.DataType() != events.DataTypeString {
		return ""
	}
	return av.String()
}

func intAttr(img map[string]events.DynamoDBAttributeValue, key string) int64 {
	av, ok := img[key]
	if !ok || av.DataType() != events.DataTypeNumber {
		return 0
	}
	n, err := av.Integer()
	if err != nil {
		return 0
	}
	return n
}
