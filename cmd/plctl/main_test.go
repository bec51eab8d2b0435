package main

import (
	"flag"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/propertylane/propertylane/pkg/domain"
)

func TestListingKeyPartsMatchProjectionLayout(t *testing.T) {
	addr := domain.PropertyAddress{Country: "usa", City: "anytown", Street: "main-street", Number: "111"}
	pk, sk := listingKeyParts(addr)
	if pk != "PROPERTY#usa#anytown" {
		t.Fatalf("unexpected partition key %q", pk)
	}
	if sk != "main-street#111" {
		t.Fatalf("unexpected sort key %q", sk)
	}
	key := listingRowKey(addr)
	if got := key["PK"].(*ddbtypes.AttributeValueMemberS).Value; got != pk {
		t.Fatalf("key map PK %q does not match %q", got, pk)
	}
	if got := key["SK"].(*ddbtypes.AttributeValueMemberS).Value; got != sk {
		t.Fatalf("key map SK %q does not match %q", got, sk)
	}
}

func TestNewListingRowSeedsDraft(t *testing.T) {
	addr := domain.PropertyAddress{Country: "usa", City: "anytown", Street: "main-street", Number: "111"}
	row := newListingRow(addr, "two bedrooms", "EUR", []string{"img1.jpg"}, 250000)
	if row.Status != domain.ListingStatusDraft || row.Version != 1 {
		t.Fatalf("expected fresh DRAFT row, got %+v", row)
	}
	if row.PropertyID != "usa/anytown/main-street/111" {
		t.Fatalf("unexpected property id %q", row.PropertyID)
	}
	if row.PK != "PROPERTY#usa#anytown" || row.SK != "main-street#111" {
		t.Fatalf("unexpected composite key %q %q", row.PK, row.SK)
	}

	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		t.Fatalf("marshal row: %v", err)
	}
	if got := item["status"].(*ddbtypes.AttributeValueMemberS).Value; got != "DRAFT" {
		t.Fatalf("unexpected status attribute %q", got)
	}
	if got := item["PK"].(*ddbtypes.AttributeValueMemberS).Value; got != row.PK {
		t.Fatalf("unexpected PK attribute %q", got)
	}
	if _, ok := item["property_id"]; !ok {
		t.Fatalf("expected property_id attribute, got %v", item)
	}
}

func TestRepeatStringFlagAccumulates(t *testing.T) {
	var images repeatStringFlag
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&images, "image", "")
	if err := fs.Parse([]string{"--image", "img1.jpg", "--image", "  ", "--image", "img2.jpg"}); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	if len(images) != 2 || images[0] != "img1.jpg" || images[1] != "img2.jpg" {
		t.Fatalf("unexpected images %v", images)
	}
}
