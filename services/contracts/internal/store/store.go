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

var ErrContractNotFound = errors.New("contract not found")

type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// Contract is the seller agreement for a single property. One contract per
// property id; the id doubles as the partition key.
type Contract struct {
	PropertyID             string                 `dynamodbav:"property_id" json:"property_id"`
	ContractID             string                 `dynamodbav:"contract_id" json:"contract_id"`
	Address                domain.PropertyAddress `dynamodbav:"address" json:"address"`
	SellerName             string                 `dynamodbav:"seller_name" json:"seller_name"`
	ContractStatus         domain.ContractStatus  `dynamodbav:"contract_status" json:"contract_status"`
	ContractCreated        string                 `dynamodbav:"contract_created" json:"contract_created"`
	ContractLastModifiedOn string                 `dynamodbav:"contract_last_modified_on" json:"contract_last_modified_on"`
	Version                int64                  `dynamodbav:"version" json:"version"`
}

type Store struct {
	client DynamoAPI
	table  string
}

func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// CreateDraft writes a brand-new contract. Returns false when a contract
// already exists for the property, leaving the stored one untouched.
func (s *Store) CreateDraft(ctx context.Context, c Contract) (bool, error) {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return false, fmt.Errorf("marshal contract: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(property_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("create contract draft: %w", err)
	}
	return true, nil
}

// Approve flips an existing, not-yet-approved contract to APPROVED and
// returns the contract as stored. Returns false when there is no contract or
// it is already approved.
func (s *Store) Approve(ctx context.Context, propertyID string, lastModifiedOn time.Time) (Contract, bool, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.table),
		Key:                 contractKey(propertyID),
		UpdateExpression:    aws.String("SET contract_status = :approved, contract_last_modified_on = :lm ADD version :one"),
		ConditionExpression: aws.String("attribute_exists(property_id) AND contract_status <> :approved"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":approved": &types.AttributeValueMemberS{Value: string(domain.ContractStatusApproved)},
			":lm":       &types.AttributeValueMemberS{Value: domain.FormatTimestamp(lastModifiedOn)},
			":one":      &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return Contract{}, false, nil
		}
		return Contract{}, false, fmt.Errorf("approve contract: %w", err)
	}
	var c Contract
	if err := attributevalue.UnmarshalMap(out.Attributes, &c); err != nil {
		return Contract{}, false, fmt.Errorf("unmarshal contract: %w", err)
	}
	return c, true, nil
}

func (s *Store) Get(ctx context.Context, propertyID string) (Contract, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            contractKey(propertyID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Contract{}, fmt.Errorf("get contract: %w", err)
	}
	if len(out.Item) == 0 {
		return Contract{}, ErrContractNotFound
	}
	var c Contract
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return Contract{}, fmt.Errorf("unmarshal contract: %w", err)
	}
	return c, nil
}

func contractKey(propertyID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"property_id": &types.AttributeValueMemberS{Value: propertyID},
	}
}

func isConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
