package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/propertylane/propertylane/pkg/domain"
	"github.com/propertylane/propertylane/pkg/events"
)

const usage = "usage: plctl contract create --property-id <id> --seller-name <name> | plctl contract approve --property-id <id> | plctl listing add --property-id <id> [--description <text>] [--image <key>] [--currency <code>] [--list-price <amount>] | plctl listing get --property-id <id> | plctl evaluation publish --property-id <id> --result <APPROVED|DECLINED>"

type repeatStringFlag []string

func (r *repeatStringFlag) String() string { return strings.Join(*r, ",") }
func (r *repeatStringFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	*r = append(*r, v)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		fail("", usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "contract":
		runContract(os.Args[2:])
	case "listing":
		runListing(os.Args[2:])
	case "evaluation":
		runEvaluation(os.Args[2:])
	default:
		fail("", usage)
		os.Exit(2)
	}
}

func runContract(args []string) {
	if len(args) < 1 {
		fail("", usage)
		os.Exit(2)
	}
	switch args[0] {
	case "create":
		runContractCreate(args[1:])
	case "approve":
		runContractApprove(args[1:])
	default:
		fail("", usage)
		os.Exit(2)
	}
}

func runListing(args []string) {
	if len(args) < 1 {
		fail("", usage)
		os.Exit(2)
	}
	switch args[0] {
	case "add":
		runListingAdd(args[1:])
	case "get":
		runListingGet(args[1:])
	default:
		fail("", usage)
		os.Exit(2)
	}
}

func runEvaluation(args []string) {
	if len(args) < 1 || args[0] != "publish" {
		fail("", usage)
		os.Exit(2)
	}
	runEvaluationPublish(args[1:])
}

func runContractCreate(args []string) {
	fs := flag.NewFlagSet("contract create", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	propertyID := fs.String("property-id", "", "property identifier (country/city/street/number)")
	sellerName := fs.String("seller-name", "", "seller display name")
	if err := fs.Parse(args); err != nil {
		fail("", err.Error())
		os.Exit(2)
	}
	pid := strings.TrimSpace(*propertyID)
	seller := strings.TrimSpace(*sellerName)
	if pid == "" || seller == "" {
		fail(pid, "both --property-id and --seller-name are required")
		os.Exit(2)
	}
	addr, err := domain.ParsePropertyID(pid)
	if err != nil {
		fail(pid, err.Error())
		os.Exit(2)
	}

	body, _ := json.Marshal(struct {
		PropertyID string                 `json:"property_id"`
		SellerName string                 `json:"seller_name"`
		Address    domain.PropertyAddress `json:"address"`
	}{pid, seller, addr})

	ctx := context.Background()
	if err := sendContractCommand(ctx, pid, "POST", body); err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}
	pass(pid, "contract create enqueued")
}

func runContractApprove(args []string) {
	fs := flag.NewFlagSet("contract approve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	propertyID := fs.String("property-id", "", "property identifier (country/city/street/number)")
	if err := fs.Parse(args); err != nil {
		fail("", err.Error())
		os.Exit(2)
	}
	pid := strings.TrimSpace(*propertyID)
	if pid == "" {
		fail(pid, "--property-id is required")
		os.Exit(2)
	}

	body, _ := json.Marshal(struct {
		PropertyID string `json:"property_id"`
	}{pid})

	ctx := context.Background()
	if err := sendContractCommand(ctx, pid, "PUT", body); err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}
	pass(pid, "contract approve enqueued")
}

// listingRow mirrors the search projection row owned by the web service so
// the CLI can seed and inspect listings through the table contract alone.
type listingRow struct {
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

func listingKeyParts(addr domain.PropertyAddress) (pk, sk string) {
	return "PROPERTY#" + addr.Country + "#" + addr.City, addr.Street + "#" + addr.Number
}

func listingRowKey(addr domain.PropertyAddress) map[string]ddbtypes.AttributeValue {
	pk, sk := listingKeyParts(addr)
	return map[string]ddbtypes.AttributeValue{
		"PK": &ddbtypes.AttributeValueMemberS{Value: pk},
		"SK": &ddbtypes.AttributeValueMemberS{Value: sk},
	}
}

func newListingRow(addr domain.PropertyAddress, description, currency string, images []string, listPrice float64) listingRow {
	row := listingRow{
		PropertyID:  addr.PropertyID(),
		Country:     addr.Country,
		City:        addr.City,
		Street:      addr.Street,
		Number:      addr.Number,
		Description: description,
		Images:      images,
		Currency:    currency,
		ListPrice:   listPrice,
		Status:      domain.ListingStatusDraft,
		Version:     1,
	}
	row.PK, row.SK = listingKeyParts(addr)
	return row
}

func runListingAdd(args []string) {
	fs := flag.NewFlagSet("listing add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	propertyID := fs.String("property-id", "", "property identifier (country/city/street/number)")
	description := fs.String("description", "", "listing description")
	currency := fs.String("currency", "USD", "list price currency")
	listPrice := fs.Float64("list-price", 0, "list price amount")
	var images repeatStringFlag
	fs.Var(&images, "image", "listing image key (repeatable)")
	if err := fs.Parse(args); err != nil {
		fail("", err.Error())
		os.Exit(2)
	}
	pid := strings.TrimSpace(*propertyID)
	if pid == "" {
		fail(pid, "--property-id is required")
		os.Exit(2)
	}
	addr, err := domain.ParsePropertyID(pid)
	if err != nil {
		fail(pid, err.Error())
		os.Exit(2)
	}

	row := newListingRow(addr, strings.TrimSpace(*description), strings.TrimSpace(*currency), images, *listPrice)
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}

	ctx := context.Background()
	client := dynamodb.NewFromConfig(loadAWS(ctx, pid))
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(requiredEnv("WEB_TABLE", pid)),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var cfe *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			fail(pid, "listing already exists")
			os.Exit(1)
		}
		fail(pid, err.Error())
		os.Exit(1)
	}
	pass(pid, "listing seeded as DRAFT")
}

func runListingGet(args []string) {
	fs := flag.NewFlagSet("listing get", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	propertyID := fs.String("property-id", "", "property identifier (country/city/street/number)")
	if err := fs.Parse(args); err != nil {
		fail("", err.Error())
		os.Exit(2)
	}
	pid := strings.TrimSpace(*propertyID)
	if pid == "" {
		fail(pid, "--property-id is required")
		os.Exit(2)
	}
	addr, err := domain.ParsePropertyID(pid)
	if err != nil {
		fail(pid, err.Error())
		os.Exit(2)
	}

	ctx := context.Background()
	client := dynamodb.NewFromConfig(loadAWS(ctx, pid))
	out, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(requiredEnv("WEB_TABLE", pid)),
		Key:            listingRowKey(addr),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}
	if len(out.Item) == 0 {
		fail(pid, "listing not found")
		os.Exit(1)
	}
	var row listingRow
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}
	b, _ := json.Marshal(row)
	fmt.Println(string(b))
}

func runEvaluationPublish(args []string) {
	fs := flag.NewFlagSet("evaluation publish", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	propertyID := fs.String("property-id", "", "property identifier (country/city/street/number)")
	result := fs.String("result", "", "evaluation result (APPROVED or DECLINED)")
	if err := fs.Parse(args); err != nil {
		fail("", err.Error())
		os.Exit(2)
	}
	pid := strings.TrimSpace(*propertyID)
	res := domain.EvaluationResult(strings.ToUpper(strings.TrimSpace(*result)))
	if pid == "" || res == "" {
		fail(pid, "both --property-id and --result are required")
		os.Exit(2)
	}
	if !domain.IsValidEvaluationResult(res) {
		fail(pid, "--result must be APPROVED or DECLINED")
		os.Exit(2)
	}

	ctx := context.Background()
	bus := events.NewPublisher(eventbridge.NewFromConfig(loadAWS(ctx, pid)),
		requiredEnv("EVENT_BUS_NAME", pid), events.SourceProperties)
	err := bus.Publish(ctx, events.DetailTypePublicationEvaluationCompleted, &events.PublicationEvaluationCompleted{
		PropertyID:       pid,
		EvaluationResult: res,
	})
	if err != nil {
		fail(pid, err.Error())
		os.Exit(1)
	}
	pass(pid, "publication evaluation published")
}

func sendContractCommand(ctx context.Context, propertyID, method string, body []byte) error {
	client := sqs.NewFromConfig(loadAWS(ctx, propertyID))
	_, err := client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(requiredEnv("CONTRACT_COMMANDS_QUEUE_URL", propertyID)),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"HttpMethod": {DataType: aws.String("String"), StringValue: aws.String(method)},
		},
	})
	return err
}

func loadAWS(ctx context.Context, propertyID string) aws.Config {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fail(propertyID, "load aws config failed: "+err.Error())
		os.Exit(1)
	}
	return cfg
}

func requiredEnv(name, propertyID string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		fail(propertyID, name+" is required")
		os.Exit(2)
	}
	return v
}

func pass(propertyID, detail string) {
	fmt.Printf("{\"tool\":\"plctl\",\"status\":\"OK\",\"property_id\":%s,\"detail\":%s,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(propertyID),
		jsonQuote(detail),
		time.Now().UTC().Format(time.RFC3339),
	)
}

func fail(propertyID, reason string) {
	fmt.Printf("{\"tool\":\"plctl\",\"status\":\"ERROR\",\"property_id\":%s,\"reason\":%s,\"timestamp_utc\":\"%s\"}\n",
		jsonQuote(propertyID),
		jsonQuote(reason),
		time.Now().UTC().Format(time.RFC3339),
	)
}

func jsonQuote(v string) string {
	b, _ := json.Marshal(v)
	return string(b)
}
