// Package store persists the search projection: one denormalized row per
// listing, keyed so that city, street and exact-address lookups are all
// single key-condition reads.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/propertylane/propertylane/pkg/domain"
)

var ErrListingNotFound = errors.New("listing not found")

type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

type Listing struct {
	PK          string               `dynamodbav:"PK" json:"-"`
	SK          string               `dynamodbav:"SK" json:"-"`
	PropertyID  string               `dynamodbav:"property_id" json:"property_id"`
	Country     string               `dynamodbav:"country" json:"country"`
	City        string               `dynamodbav:"city" json:"city"`
	Street      string               `dynamodbav:"street" json:"street"`
	Number      string               `dynamodbav:"number" json:"number"`
	Description string               `dynamodbav:"description" json:"description"`
	Images      []string             `dynamodbav:"images" json:"images"`
	Currency    string               `dynamodbav:"currency" json:"currency"`
	ListPrice   float64              `dynamodbav:"listprice" json:"listprice"`
	Status      domain.ListingStatus `dynamodbav:"status" json:"status"`
	Version     int64                `dynamodbav:"version" json:"version"`
}

type Store struct {
	client DynamoAPI
	table  string
}

func New(client DynamoAPI, table string) *Store {
	return &Store{client: client, table: table}
}

// PutListing seeds a new row, deriving the composite key from the address
// fields. Returns false when the row already exists.
func (s *Store) PutListing(ctx context.Context, l Listing) (bool, error) {
	l.PK = partitionKey(l.Country, l.City)
	l.SK = l.Street + "#" + l.Number
	item, err := attributevalue.MarshalMap(l)
	if err != nil {
		return false, fmt.Errorf("marshal listing: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put listing: %w", err)
	}
	return true, nil
}

func (s *Store) GetListing(ctx context.Context, addr domain.PropertyAddress) (Listing, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            listingKey(addr),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Listing{}, fmt.Errorf("get listing: %w", err)
	}
	if len(out.Item) == 0 {
		return Listing{}, ErrListingNotFound
	}
	var l Listing
	if err := attributevalue.UnmarshalMap(out.Item, &l); err != nil {
		return Listing{}, fmt.Errorf("unmarshal listing: %w", err)
	}
	return l, nil
}

func (s *Store) QueryByCity(ctx context.Context, country, city string) ([]Listing, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey(country, city)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query listings by city: %w", err)
	}
	return unmarshalListings(out.Items)
}

func (s *Store) QueryByStreet(ctx context.Context, country, city, street string) ([]Listing, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :street)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: partitionKey(country, city)},
			":street": &types.AttributeValueMemberS{Value: street + "#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query listings by street: %w", err)
	}
	return unmarshalListings(out.Items)
}

// MarkPending moves a listing from its last observed status to PENDING.
// Returns false when the row is gone or the status moved on since it was
// read, which means a concurrent approval request won.
func (s *Store) MarkPending(ctx context.Context, addr domain.PropertyAddress, from domain.ListingStatus) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      listingKey(addr),
		UpdateExpression:         aws.String("SET #status = :pending ADD version :one"),
		ConditionExpression:      aws.String("attribute_exists(PK) AND #status = :from"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(domain.ListingStatusPending)},
			":from":    &types.AttributeValueMemberS{Value: string(from)},
			":one":     &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("mark listing pending: %w", err)
	}
	return true, nil
}

// SetEvaluation writes the evaluation outcome into the status attribute of an
// existing row. Returns false when there is no row for the address.
func (s *Store) SetEvaluation(ctx context.Context, addr domain.PropertyAddress, result domain.EvaluationResult) (bool, error) {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.table),
		Key:                      listingKey(addr),
		UpdateExpression:         aws.String("SET #status = :status ADD version :one"),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{"#status": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(result)},
			":one":    &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("set listing evaluation: %w", err)
	}
	return true, nil
}

func partitionKey(country, city string) string {
	return "PROPERTY#" + country + "#" + city
}

func listingKey(addr domain.PropertyAddress) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey(addr.Country, addr.City)},
		"SK": &types.AttributeValueMemberS{Value: addr.Street + "#" + addr.Number},
	}
}

func unmarshalListings(items []map[string]types.AttributeValue) ([]Listing, error) {
	listings := make([]Listing, 0, len(items))
	for _, item := range items {
		var l Listing
		if err := attributevalue.UnmarshalMap(item, &l); err != nil {
			return nil, fmt.Errorf("unmarshal listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, nil
}

func isConditionalCheckFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return errors.As(err, &cfe)
}
