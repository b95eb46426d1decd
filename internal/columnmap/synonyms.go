// =============================================================================
// Freight Billing Reconciler - Synonym Table
// =============================================================================
//
// The synonym table is the declarative dictionary that maps every canonical
// shipment field to the header spellings carriers actually use. The order of
// the table matters: fields are resolved in declared order, so an earlier
// field claims an ambiguous header first.
//
// CUSTOMIZATION:
//   Point `synonyms_file` in config.yaml at a YAML file to replace the table:
//
//     client: [client, customer, account name]
//     cost: [cost, freight cost]
//     billable_amount: [billable, revenue]
//
//   Keys keep the order in which they appear in the file.
//
// =============================================================================

package columnmap

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Field is a canonical shipment field name.
type Field string

const (
	FieldClient         Field = "client"
	FieldTrackingNumber Field = "tracking_number"
	FieldServiceType    Field = "service_type"
	FieldCost           Field = "cost"
	FieldBillableAmount Field = "billable_amount"
	FieldWeight         Field = "weight"
	FieldZone           Field = "zone"
	FieldShipDate       Field = "ship_date"
	FieldDeliveryDate   Field = "delivery_date"

	// FieldInvoiceDate has no synonyms by default; it is reachable through
	// manual overrides.
	FieldInvoiceDate Field = "invoice_date"
)

// RequiredFields must be present after mapping or the file is rejected.
var RequiredFields = []Field{FieldClient, FieldCost, FieldBillableAmount}

// knownFields lists every field a mapping may target.
var knownFields = map[Field]bool{
	FieldClient:         true,
	FieldTrackingNumber: true,
	FieldServiceType:    true,
	FieldCost:           true,
	FieldBillableAmount: true,
	FieldWeight:         true,
	FieldZone:           true,
	FieldShipDate:       true,
	FieldDeliveryDate:   true,
	FieldInvoiceDate:    true,
}

// IsKnown reports whether f is a canonical field.
func IsKnown(f Field) bool { return knownFields[f] }

// Synonym lists the aliases of one canonical field.
type Synonym struct {
	Field   Field
	Aliases []string
}

// SynonymTable is an ordered list of synonyms.
type SynonymTable []Synonym

// DefaultSynonyms returns the built-in table.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		{FieldClient, []string{
			"client", "customer", "customer_name", "account", "consignee",
			"shipper", "company", "client_name", "customer name", "account name",
		}},
		{FieldTrackingNumber, []string{
			"tracking", "tracking_number", "tracking_id", "awb", "pro",
			"tracking number", "tracking id", "shipment id", "reference",
		}},
		{FieldServiceType, []string{
			"service", "service_type", "service_level", "service type",
			"service level", "shipping service", "delivery service",
		}},
		{FieldCost, []string{
			"cost", "freight_cost", "shipping_cost", "carrier_charge",
			"total_cost", "total cost", "freight cost", "shipping cost",
			"carrier cost", "transport cost", "delivery cost",
		}},
		{FieldBillableAmount, []string{
			"billable", "billable_amount", "revenue", "charge_amount",
			"bill_amount", "invoice_amount", "billable amount", "bill amount",
			"invoice amount", "charge amount", "total billable", "total_billable",
		}},
		{FieldWeight, []string{
			"weight", "package_weight", "total_weight", "package weight",
			"total weight", "shipment weight", "gross weight",
		}},
		{FieldZone, []string{
			"zone", "delivery_zone", "shipping_zone", "delivery zone",
			"shipping zone", "service zone",
		}},
		{FieldShipDate, []string{
			"date", "ship_date", "pickup_date", "service_date", "ship date",
			"pickup date", "service date", "shipment date", "send date",
		}},
		{FieldDeliveryDate, []string{
			"delivery_date", "delivered_date", "delivery", "delivery date",
			"delivered date", "arrival date", "completion date",
		}},
	}
}

// Lookup returns the aliases declared for f.
func (t SynonymTable) Lookup(f Field) ([]string, bool) {
	for _, s := range t {
		if s.Field == f {
			return s.Aliases, true
		}
	}
	return nil, false
}

// LoadSynonyms reads a YAML synonym table, preserving key order.
func LoadSynonyms(path string) (SynonymTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}
	return ParseSynonyms(data)
}

// ParseSynonyms decodes a YAML mapping of field -> aliases.
func ParseSynonyms(data []byte) (SynonymTable, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("synonyms file is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("synonyms must be a mapping of field to aliases (line %d)", root.Line)
	}

	table := make(SynonymTable, 0, len(root.Content)/2)
	seen := make(map[Field]bool)

	// Mapping nodes alternate key, value.
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]

		field := Field(keyNode.Value)
		if !IsKnown(field) {
			return nil, fmt.Errorf("unknown canonical field %q (line %d)", keyNode.Value, keyNode.Line)
		}
		if seen[field] {
			return nil, fmt.Errorf("field %q declared twice (line %d)", field, keyNode.Line)
		}
		seen[field] = true

		var aliases []string
		if err := valueNode.Decode(&aliases); err != nil {
			return nil, fmt.Errorf("aliases for %q: %w", field, err)
		}
		table = append(table, Synonym{Field: field, Aliases: aliases})
	}

	return table, nil
}
