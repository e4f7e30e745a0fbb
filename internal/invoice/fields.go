package invoice

// Field identifies one of the named values scraped from a broker invoice.
type Field int

const (
	FieldReference Field = iota
	FieldShipper
	FieldWeight
	FieldVolume
	FieldCommercialValue
	FieldGSTHST
	FieldDuties
	FieldBrokerFee

	fieldCount = iota
)

// Kind describes how a matched label value is interpreted
type Kind int

const (
	KindText Kind = iota
	KindMoney
	KindMeasure
)

// Scope limits the pages a label anchor is searched on
type Scope int

const (
	ScopeFirstPage Scope = iota
	ScopeAllPages
)

// Column headers that precede the field columns in every export.
const (
	HeaderTimestamp = "Timestamp"
	HeaderFilename  = "Filename"
)

var fieldHeaders = [fieldCount]string{
	FieldReference:       "Reference",
	FieldShipper:         "Shipper",
	FieldWeight:          "Weight",
	FieldVolume:          "Volume",
	FieldCommercialValue: "Commercial_Value",
	FieldGSTHST:          "GST_HST",
	FieldDuties:          "Duties",
	FieldBrokerFee:       "Broker_Fee",
}

var fieldKinds = [fieldCount]Kind{
	FieldReference:       KindText,
	FieldShipper:         KindText,
	FieldWeight:          KindMeasure,
	FieldVolume:          KindMeasure,
	FieldCommercialValue: KindMoney,
	FieldGSTHST:          KindMoney,
	FieldDuties:          KindMoney,
	FieldBrokerFee:       KindMoney,
}

// Fields returns every field in export column order.
func Fields() []Field {
	fields := make([]Field, fieldCount)
	for i := range fields {
		fields[i] = Field(i)
	}
	return fields
}

// Header returns the column header for the field.
func (f Field) Header() string {
	if f < 0 || int(f) >= fieldCount {
		return "Unknown_Field"
	}
	return fieldHeaders[f]
}

// Kind returns how the field value is interpreted.
func (f Field) Kind() Kind {
	if f < 0 || int(f) >= fieldCount {
		return KindText
	}
	return fieldKinds[f]
}

func (f Field) String() string {
	return f.Header()
}

// Headers returns the fixed export header row.
func Headers() []string {
	headers := make([]string, 0, fieldCount+2)
	headers = append(headers, HeaderTimestamp, HeaderFilename)
	for _, f := range Fields() {
		headers = append(headers, f.Header())
	}
	return headers
}
