package descriptions

import "sort"

// Tool names exposed over MCP
const (
	ToolExtractFile      = "invoice_extract_file"
	ToolExtractDirectory = "invoice_extract_directory"
	ToolExtractURL       = "invoice_extract_url"
	ToolValidateFile     = "invoice_validate_file"
	ToolServerInfo       = "invoice_server_info"
)

// Tool descriptions with practical examples and use cases

const (
	ExtractFileDescription = `Extract the summary fields of one customs broker invoice PDF.

**When to use:** A single broker or B3 invoice needs its reference number, shipper, weight, volume, commercial value, GST/HST, duties and broker fee.

**How it works:** The reference number and the broker fee ("Amount Due CAD") are read from page 1 only. Value for Fee (CDN), Duties = $ and GST = $ are searched on every page and the first match wins. Pages without a text layer are sent to OCR when an engine is configured.

**Examples:**
• "Extract the fields from invoices/2025-03/INV-1300-4455.pdf"
• "What broker fee was charged on B3-summary.pdf?"

**Best practices:** Fields whose label does not appear are reported as unknown rather than guessed. Run invoice_validate_file first on files of unknown origin.`

	ExtractDirectoryDescription = `Extract every invoice PDF in a directory into one summary table, optionally written as a spreadsheet.

**When to use:** Month-end reconciliation, or any batch of broker invoices that should end up in Invoice_Summary.xlsx.

**How it works:** Files are processed one at a time in path order. A file that cannot be read or has no text becomes a warning ("Nothing extracted from X") and is skipped; it never aborts the batch. The output row count equals the number of files parsed successfully.

**Examples:**
• "Summarize all invoices in 2025-03 into Invoice_Summary.xlsx"
• "Extract invoices whose name contains 'acme' as CSV"

**Best practices:** Use query to narrow large directories. Output paths are relative to the invoice directory; the format follows the extension (.xlsx or .csv) unless format is given.`

	ExtractURLDescription = `Download an invoice PDF by URL and extract its fields.

**When to use:** Invoices published on a broker portal or shared by link.

**How it works:** A PDF response is processed directly. When discover is true and the URL returns an HTML page, every linked .pdf on that page is downloaded and processed in page order.

**Examples:**
• "Extract https://portal.example.com/invoices/1300-4455.pdf"
• "Process every invoice linked from https://portal.example.com/invoices/march/ with discover=true"

**Best practices:** Downloads are limited by the configured maximum file size and fetch timeout.`

	ValidateFileDescription = `Check that a file is a readable PDF before extraction.

**When to use:** Before extracting files of unknown origin, or to explain why a file produced a warning.

**Reports:** validity, size, page count, PDF version and whether the document is encrypted.`

	ServerInfoDescription = `Get server information, the exported columns, the invoice directory contents and usage guidance.

**When to use:** At the start of a session to discover which invoices are available and how the tools fit together.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ToolExtractFile:      ExtractFileDescription,
	ToolExtractDirectory: ExtractDirectoryDescription,
	ToolExtractURL:       ExtractURLDescription,
	ToolValidateFile:     ValidateFileDescription,
	ToolServerInfo:       ServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
