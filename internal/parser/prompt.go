package parser

import (
	"strings"

	"aforo/internal/port"
)

const responseContract = `Return ONLY valid JSON with no markdown formatting, no code fences and no explanation.

Return two top-level keys: "data" and "confidence_scores".

The "confidence_scores" object must mirror the "data" object, with a number between 0.0 and 1.0 for every field (and for every column of every line item) expressing how sure you are of the value. Use 0.0 for fields not found in the document.

If a field is not present in the document, use an empty string. Do not invent values.
Copy numbers exactly as printed, including thousands and decimal separators (for example "1.234,56" or "1,234.56"). Do not convert currencies or units.
Normalize dates to YYYY-MM-DD when the date is unambiguous; otherwise copy the date as printed.`

const blSchema = `{
  "bl_number": "",
  "exporter": "",
  "exporter_address": "",
  "consignee": "",
  "consignee_address": "",
  "gross_weight": "",
  "package_count": "",
  "freight_cost": "",
  "vessel_voyage": "",
  "container_number": "",
  "port_of_loading": "",
  "port_of_discharge": "",
  "date_laden_on_board": ""
}`

const invoiceSchema = `{
  "bl_reference": "",
  "invoice_number": "",
  "invoice_date": "",
  "incoterm": "",
  "currency": "",
  "total_value": "",
  "exporter": "",
  "exporter_address": "",
  "line_items": [
    {
      "description": "",
      "part_number": "",
      "quantity": "",
      "unit_price": "",
      "total_price": "",
      "weight": ""
    }
  ]
}`

// BuildExtractionPrompt returns the extraction prompt for a BL or a commercial invoice.
func BuildExtractionPrompt(documentType string, textMode bool) string {
	var b strings.Builder
	b.WriteString("You are a customs document data extraction assistant. ")

	switch documentType {
	case "bl":
		b.WriteString("Analyze the provided Bill of Lading and extract its data into the following JSON structure.\n\n")
		b.WriteString("IMPORTANT INSTRUCTIONS:\n")
		b.WriteString("- bl_number is the Bill of Lading number, not the booking number.\n")
		b.WriteString("- gross_weight is the total gross weight in kilograms for the whole shipment.\n")
		b.WriteString("- package_count is the total number of packages, cartons or pallets.\n")
		b.WriteString("- freight_cost is the total ocean freight amount when it is printed on the document.\n")
		b.WriteString("- exporter is the shipper; consignee is the party the goods are consigned to.\n\n")
		b.WriteString("The \"data\" object must follow this schema:\n")
		b.WriteString(blSchema)
	default:
		b.WriteString("Analyze the provided commercial invoice and extract ALL data into the following JSON structure.\n\n")
		b.WriteString("IMPORTANT INSTRUCTIONS:\n")
		b.WriteString("- The invoice may span multiple pages. Extract EVERY line item from every page into a single flat \"line_items\" array, in document order.\n")
		b.WriteString("- Do not skip, summarize, merge or deduplicate line items.\n")
		b.WriteString("- bl_reference is the Bill of Lading number this invoice ships under, as printed on the invoice.\n")
		b.WriteString("- weight is the line weight in kilograms when the invoice prints one; otherwise leave it empty.\n")
		b.WriteString("- total_value is the invoice grand total.\n\n")
		b.WriteString("The \"data\" object must follow this schema:\n")
		b.WriteString(invoiceSchema)
	}

	b.WriteString("\n\n")
	b.WriteString(responseContract)

	if textMode {
		b.WriteString("\n\nThe document text layer follows between the markers.\n")
	}
	return b.String()
}

// PromptFor builds the prompt for a parse input, appending the text layer in text mode.
func PromptFor(input port.ParseInput) string {
	prompt := BuildExtractionPrompt(input.DocumentType, input.TextMode())
	if !input.TextMode() {
		return prompt
	}
	return prompt + "<<<DOCUMENT\n" + input.TextLayer + "\nDOCUMENT>>>"
}
