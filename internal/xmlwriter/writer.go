// =============================================================================
// Freight Billing Reconciler - Invoice XML Writer
// =============================================================================
//
// This module renders one client's invoice for a cycle as XML, for accounting
// systems that import invoices rather than spreadsheets.
//
// XML STRUCTURE:
//
//   <invoice client="Globex" cycle="2024-01">
//     <InvoiceNumber>INV-7</InvoiceNumber>
//     <InvoiceDate>2024-02-10</InvoiceDate>
//     <Status>Billed</Status>
//     <summary>
//       <CarrierCount>2</CarrierCount>
//       <ShipmentCount>3</ShipmentCount>
//       <TotalCost>35.00</TotalCost>
//       ...
//     </summary>
//     <carrier n="1" name="Acme">           <!-- one per carrier aggregate -->
//       <ShipmentCount>2</ShipmentCount>
//       <TotalBillable>40.00</TotalBillable>
//       <lineItem n="1">                    <!-- numbering continues across carriers -->
//         <TrackingNumber>1Z999</TrackingNumber>
//         <BillableAmount>15.00</BillableAmount>
//       </lineItem>
//     </carrier>
//   </invoice>
//
// Money values are written with two decimals. Empty optional fields are
// omitted.
//
// =============================================================================

package xmlwriter

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// =============================================================================
// XML GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for XML generation.
type GenerateOptions struct {
	// Indent is the string used for indentation.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to include the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool

	// RootAttributes are additional attributes for the root element.
	// Example: {"xmlns": "http://example.com/invoice"}
	RootAttributes map[string]string

	// IncludeLineItems adds one lineItem per shipment record.
	// Default: true
	IncludeLineItems bool

	// LineItemNumberingGlobal numbers line items 1, 2, 3... across all
	// carriers. If false, numbering restarts for each carrier.
	// Default: true
	LineItemNumberingGlobal bool
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Indent:                  "  ",
		IncludeXMLDeclaration:   true,
		RootAttributes:          make(map[string]string),
		IncludeLineItems:        true,
		LineItemNumberingGlobal: true,
	}
}

// =============================================================================
// INVOICE INPUT
// =============================================================================

// Invoice is everything rendered for one (client, cycle).
type Invoice struct {
	Summary types.ClientCycleSummary

	// Carriers are the client's aggregates for the cycle.
	Carriers []types.BillingAggregate

	// Shipments are the client's records for the cycle.
	Shipments []types.ShipmentRecord
}

// =============================================================================
// XML GENERATION FUNCTIONS
// =============================================================================

// Generate creates the invoice document with the default options.
func Generate(inv Invoice) ([]byte, error) {
	return GenerateWithOptions(inv, DefaultGenerateOptions())
}

// GenerateWithOptions creates the invoice document.
//
// PARAMETERS:
//   - inv: The summary, carrier aggregates and shipment records of one client.
//   - options: The generation options.
//
// RETURNS:
//   - The XML document as a byte slice.
//   - An error if the invoice has no client or cycle.
func GenerateWithOptions(inv Invoice, options GenerateOptions) ([]byte, error) {
	if inv.Summary.Client == "" || inv.Summary.CyclePeriod == "" {
		return nil, fmt.Errorf("invoice requires a client and a cycle period")
	}

	var buffer bytes.Buffer
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	root := buildDocument(inv, options)
	writeElement(&buffer, root, options.Indent, 0)
	return buffer.Bytes(), nil
}

// =============================================================================
// XML DOCUMENT BUILDING
// =============================================================================

// XMLElement represents a generic XML element.
type XMLElement struct {
	XMLName    xml.Name
	Attributes []xml.Attr
	Value      string
	Children   []XMLElement
}

func buildDocument(inv Invoice, options GenerateOptions) XMLElement {
	s := inv.Summary
	root := XMLElement{
		XMLName: xml.Name{Local: "invoice"},
		Attributes: []xml.Attr{
			attr("client", s.Client),
			attr("cycle", s.CyclePeriod),
		},
	}

	keys := make([]string, 0, len(options.RootAttributes))
	for k := range options.RootAttributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		root.Attributes = append(root.Attributes, attr(k, options.RootAttributes[k]))
	}

	number, date := invoiceMetadata(inv.Carriers)
	root.Children = appendIfSet(root.Children, "InvoiceNumber", number)
	root.Children = appendIfSet(root.Children, "InvoiceDate", formatDate(date))
	root.Children = append(root.Children, createSimpleElement("Status", string(s.InvoiceStatus)))

	root.Children = append(root.Children, XMLElement{
		XMLName: xml.Name{Local: "summary"},
		Children: []XMLElement{
			createSimpleElement("CarrierCount", fmt.Sprintf("%d", s.CarrierCount)),
			createSimpleElement("ShipmentCount", fmt.Sprintf("%d", s.ShipmentCount)),
			createSimpleElement("TotalCost", money(s.TotalCost)),
			createSimpleElement("TotalBillable", money(s.TotalBillable)),
			createSimpleElement("Profit", money(s.Profit)),
			createSimpleElement("ProfitMargin", margin(s.ProfitMargin)),
		},
	})

	byCarrier := make(map[string][]types.ShipmentRecord)
	for _, r := range inv.Shipments {
		byCarrier[r.Carrier] = append(byCarrier[r.Carrier], r)
	}

	globalLineItemIndex := 1
	for i, a := range inv.Carriers {
		root.Children = append(root.Children, buildCarrierElement(i+1, a, byCarrier[a.Carrier], options, &globalLineItemIndex))
	}
	return root
}

// buildCarrierElement constructs one carrier's section.
//
// STRUCTURE:
//   <carrier n="1" name="Acme">
//     <ShipmentCount>2</ShipmentCount>
//     ...
//     <lineItem n="1">...</lineItem>
//   </carrier>
func buildCarrierElement(n int, a types.BillingAggregate, records []types.ShipmentRecord, options GenerateOptions, globalLineItemIndex *int) XMLElement {
	element := XMLElement{
		XMLName:    xml.Name{Local: "carrier"},
		Attributes: []xml.Attr{attr("n", fmt.Sprintf("%d", n)), attr("name", a.Carrier)},
		Children: []XMLElement{
			createSimpleElement("ShipmentCount", fmt.Sprintf("%d", a.ShipmentCount)),
			createSimpleElement("TotalCost", money(a.TotalCost)),
			createSimpleElement("TotalBillable", money(a.TotalBillable)),
			createSimpleElement("Profit", money(a.Profit)),
			createSimpleElement("ProfitMargin", margin(a.ProfitMargin)),
			createSimpleElement("Status", string(a.InvoiceStatus)),
		},
	}
	element.Children = appendIfSet(element.Children, "Notes", a.Notes)

	if !options.IncludeLineItems {
		return element
	}

	for i, r := range records {
		index := i + 1
		if options.LineItemNumberingGlobal {
			index = *globalLineItemIndex
			(*globalLineItemIndex)++
		}
		element.Children = append(element.Children, buildLineItemElement(index, r))
	}
	return element
}

// buildLineItemElement constructs a line item XML element.
func buildLineItemElement(index int, r types.ShipmentRecord) XMLElement {
	element := XMLElement{
		XMLName:    xml.Name{Local: "lineItem"},
		Attributes: []xml.Attr{attr("n", fmt.Sprintf("%d", index))},
	}
	children := element.Children
	children = appendIfSet(children, "TrackingNumber", r.TrackingNumber)
	children = appendIfSet(children, "ServiceType", r.ServiceType)
	children = appendIfSet(children, "ShipDate", formatDate(r.ShipDate))
	children = appendIfSet(children, "DeliveryDate", formatDate(r.DeliveryDate))
	children = appendIfSet(children, "Zone", r.Zone)
	if r.Weight.Valid {
		children = append(children, createSimpleElement("Weight", r.Weight.Decimal.String()))
	}
	children = append(children,
		createSimpleElement("Cost", money(r.Cost)),
		createSimpleElement("BillableAmount", money(r.BillableAmount)))
	element.Children = children
	return element
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// createSimpleElement creates a simple XML element with a text value.
func createSimpleElement(name, value string) XMLElement {
	return XMLElement{XMLName: xml.Name{Local: name}, Value: value}
}

func appendIfSet(children []XMLElement, name, value string) []XMLElement {
	if value == "" {
		return children
	}
	return append(children, createSimpleElement(name, value))
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func margin(m decimal.NullDecimal) string {
	if !m.Valid {
		return ""
	}
	return m.Decimal.StringFixed(2)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// invoiceMetadata returns the invoice number and date shared by the billed
// aggregates, or empty values when none is billed.
func invoiceMetadata(aggs []types.BillingAggregate) (string, *time.Time) {
	for _, a := range aggs {
		if a.InvoiceStatus == types.StatusBilled && a.InvoiceNumber != "" {
			return a.InvoiceNumber, a.InvoiceDate
		}
	}
	return "", nil
}

// writeElement writes an XML element to the buffer with indentation.
func writeElement(buffer *bytes.Buffer, element XMLElement, indent string, level int) {
	writeIndent(buffer, indent, level)

	buffer.WriteString("<")
	buffer.WriteString(element.XMLName.Local)
	for _, a := range element.Attributes {
		fmt.Fprintf(buffer, " %s=\"%s\"", a.Name.Local, escapeXML(a.Value))
	}

	if len(element.Children) == 0 && element.Value == "" {
		buffer.WriteString("/>\n")
		return
	}

	buffer.WriteString(">")
	if len(element.Children) == 0 {
		buffer.WriteString(escapeXML(element.Value))
	} else {
		buffer.WriteString("\n")
		for _, child := range element.Children {
			writeElement(buffer, child, indent, level+1)
		}
		writeIndent(buffer, indent, level)
	}

	buffer.WriteString("</")
	buffer.WriteString(element.XMLName.Local)
	buffer.WriteString(">\n")
}

func writeIndent(buffer *bytes.Buffer, indent string, level int) {
	for i := 0; i < level; i++ {
		buffer.WriteString(indent)
	}
}

// escapeXML escapes special characters for XML.
func escapeXML(s string) string {
	var buffer bytes.Buffer
	xml.EscapeText(&buffer, []byte(s))
	return buffer.String()
}
