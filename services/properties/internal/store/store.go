package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/propertylane/propertylane/pkg/domain"
)

var ErrRecordNotFound = errors.New("contract status record not found")

type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// ContractStatusRecord is the per-property approval workflow state: the
// latest known contract status plus, while a workflow execution is suspended,
// the callback token that resumes it.
type ContractStatusRecord struct {
	PropertyID             string                `dynamodbav:"property_id" json:"property_id"`
	ContractID             string                `dynamodbav:"contract_id" json:"contract_id"`
	ContractStatus         domain.ContractStatus `dynamodbav:"contract_status" json:"contract_status"`
	ContractLastModifiedOn string                `dynamodbav:"contract_last_modified_on" json:"contract_last_modified_on"`
	WaitApprovedTaskToken  string                `dynamodbav:"sfn_wait_approved_task_token,omitempty" json:"sfn_wait_approved_task_token,omitempty"`
	Version                int64                 `dynamodbav:"version" json:"version"`
}

type StatusUpdate struct {
	PropertyID     string
	ContractID     string
	ContractStatus domain.ContractStatus
	LastModifiedOn time.Time
}

type Store struct {
	client DynamoAPI
	table  string
}

func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// ApplyStatusChange upserts the record unless a newer status is already
// stored. Returns false when the update is stale and was skipped.
func (s *Store) ApplyStatusChange(ctx context.Context, upd StatusUpdate) (bool, error) {
	lastModified := domain.FormatTimestamp(upd.LastModifiedOn)
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 recordKey(upd.PropertyID),
		UpdateExpression:    aws.String("SET contract_id = :cid, contract_status = :cs, contract_last_modified_on = :lm ADD version :one"),
		ConditionExpression: aws.String("attribute_not_exists(property_id) OR contract_last_modified_on <= :lm"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: upd.ContractID},
			":cs":  &types.AttributeValueMemberS{Value: string(upd.ContractStatus)},
			":lm":  &types.AttributeValueMemberS{Value: lastModified},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("apply status change: %w", err)
	}
	return true, nil
}

func (s *Store) GetStatus(ctx context.Context, propertyID string) (ContractStatusRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            recordKey(propertyID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return ContractStatusRecord{}, fmt.Errorf("get contract status: %w", err)
	}
	if len(out.Item) == 0 {
		return ContractStatusRecord{}, ErrRecordNotFound
	}
	var rec ContractStatusRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return ContractStatusRecord{}, fmt.Errorf("unmarshal contract status: %w", err)
	}
	return rec, nil
}

// RegisterWaitToken stores the workflow callback token on an existing record.
// The record must already carry a contract; a token write never creates a
// phantom row. Returns ErrRecordNotFound when there is nothing to attach to.
func (s *Store) RegisterWaitToken(ctx context.Context, propertyID, token string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 recordKey(propertyID),
		UpdateExpression:    aws.String("SET sfn_wait_approved_task_token = :tok ADD version :one"),
		ConditionExpression: aws.String("attribute_exists(property_id) AND attribute_exists(contract_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": &types.AttributeValueMemberS{Value: token},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrRecordNotFound
		}
		return fmt.Errorf("register wait token: %w", err)
	}
	return nil
}

// ClearWaitToken removes the token only if it is still the one we resumed
// with, so a concurrently re-registered token is never clobbered. Returns
// false when the stored token no longer matches.
func (s *Store) ClearWaitToken(ctx context.Context, propertyID, token string) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 recordKey(propertyID),
		UpdateExpression:    aws.String("REMOVE sfn_wait_approved_task_token ADD version :one"),
		ConditionExpression: aws.String("sfn_wait_approved_task_token = :tok"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":tok": &types.AttributeValueMemberS{Value: token},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("clear wait token: %w", err)
	}
	return true, nil
}

func recordKey(propertyID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"property_id": &types.AttributeValueMemberS{Value: propertyID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
