// Package testhelpers builds fixtures shared by package tests.
package testhelpers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// BuildPDF returns a minimal, well formed PDF with one page per element of
// pages. Each page shows its lines top to bottom in Helvetica.
func BuildPDF(pages ...[]string) []byte {
	return buildPDF(pages, contentStream)
}

// BuildPositionedPDF is BuildPDF with every line placed by a Td move, the
// way most producers lay out text, instead of T*. A tab in a line starts a
// new cell 150 points to the right on the same baseline.
func BuildPositionedPDF(pages ...[]string) []byte {
	return buildPDF(pages, positionedStream)
}

func buildPDF(pages [][]string, stream func([]string) string) []byte {
	var buf bytes.Buffer
	var offsets []int

	// Objects: 1 catalog, 2 page tree, 3 font, then a page and a content
	// stream for every page.
	numObjects := 3 + 2*len(pages)
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}

	writeObj := func(num int, body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	buf.WriteString("%PDF-1.4\n")
	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))
	writeObj(3, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, lines := range pages {
		pageNum := 4 + 2*i
		contentNum := pageNum + 1

		writeObj(pageNum, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentNum))

		content := stream(lines)
		writeObj(contentNum, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", numObjects+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", numObjects+1, xrefOffset)

	return buf.Bytes()
}

func contentStream(lines []string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 10 Tf\n12 TL\n72 740 Td\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "(%s) Tj\nT*\n", escape(line))
	}
	b.WriteString("ET")
	return b.String()
}

func positionedStream(lines []string) string {
	const cellWidth, leading = 150, 14

	var b strings.Builder
	b.WriteString("BT\n/F1 10 Tf\n72 740 Td\n")
	for i, line := range lines {
		if i > 0 {
			fmt.Fprintf(&b, "0 %d Td\n", -leading)
		}
		cells := strings.Split(line, "\t")
		for j, cell := range cells {
			if j > 0 {
				fmt.Fprintf(&b, "%d 0 Td\n", cellWidth)
			}
			fmt.Fprintf(&b, "(%s) Tj\n", escape(cell))
		}
		if len(cells) > 1 {
			fmt.Fprintf(&b, "%d 0 Td\n", -cellWidth*(len(cells)-1))
		}
	}
	b.WriteString("ET")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// InvoicePages is the text of a complete two page broker invoice.
func InvoicePages(reference string) [][]string {
	return [][]string{
		{
			"CUSTOMS BROKER INVOICE",
			"Reference: " + reference,
			"Shipper: Maple Logistics Inc",
			"Gross Weight: 812.4 KG",
			"Volume: 2.10 M3",
			"Amount Due: CAD 1,180.25",
		},
		{
			"B3 SUMMARY",
			"Value for Fee (CDN): 28,400.00",
			"Duties = $1,420.00",
			"GST = $1,491.00",
		},
	}
}

// WriteFile writes data under dir and returns its path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}
