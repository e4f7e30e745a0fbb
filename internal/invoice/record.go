package invoice

import (
	"encoding/json"
	"time"
)

// Source tells how the page text of a record was obtained.
type Source string

const (
	SourceText Source = "text"
	SourceOCR  Source = "ocr"
)

// Record is the flat set of fields extracted from one invoice. It is not
// modified after Parse returns it.
type Record struct {
	timestamp time.Time
	filename  string
	pages     int
	source    Source
	values    [fieldCount]Value
}

func (r *Record) Timestamp() time.Time { return r.timestamp }
func (r *Record) Filename() string     { return r.filename }
func (r *Record) Pages() int           { return r.pages }
func (r *Record) Source() Source       { return r.source }

// Value returns the extracted value of f, or Unknown.
func (r *Record) Value(f Field) Value {
	if f < 0 || int(f) >= fieldCount {
		return Unknown
	}
	return r.values[f]
}

// Missing lists the fields whose labels were not found.
func (r *Record) Missing() []Field {
	var missing []Field
	for _, f := range Fields() {
		if !r.values[f].Known() {
			missing = append(missing, f)
		}
	}
	return missing
}

// Complete reports whether every field was found.
func (r *Record) Complete() bool {
	return len(r.Missing()) == 0
}

// Strings returns the record as text cells in Headers order.
func (r *Record) Strings() []string {
	row := make([]string, 0, fieldCount+2)
	row = append(row, r.timestamp.Format(time.RFC3339), r.filename)
	for _, f := range Fields() {
		row = append(row, r.values[f].String())
	}
	return row
}

// MarshalJSON encodes the record keyed by column header.
func (r *Record) MarshalJSON() ([]byte, error) {
	fields := make(map[string]Value, fieldCount)
	for _, f := range Fields() {
		fields[f.Header()] = r.values[f]
	}
	return json.Marshal(struct {
		Timestamp time.Time        `json:"timestamp"`
		Filename  string           `json:"filename"`
		Pages     int              `json:"pages"`
		Source    Source           `json:"source"`
		Fields    map[string]Value `json:"fields"`
	}{
		Timestamp: r.timestamp,
		Filename:  r.filename,
		Pages:     r.pages,
		Source:    r.source,
		Fields:    fields,
	})
}
