package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

type BusAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ BusAPI = (*eventbridge.Client)(nil)

type Publisher struct {
	client  BusAPI
	busName string
	source  string
}

func NewPublisher(client BusAPI, busName, source string) *Publisher {
	return &Publisher{client: client, busName: busName, source: source}
}

func (p *Publisher) Publish(ctx context.Context, detailType string, detail Payload) error {
	if err := detail.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s detail: %w", detailType, err)
	}
	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(detailType),
			Detail:       aws.String(string(b)),
		}},
	})
	if err != nil {
		return fmt.Errorf("put %s event: %w", detailType, err)
	}
	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		return fmt.Errorf("put %s event rejected: %s: %s",
			detailType, aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}
	return nil
}
