package invoice

import (
	"errors"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	// ErrNoPages is returned for a document without any page.
	ErrNoPages = errors.New("document has no pages")
	// ErrNoText is returned when every page of a document is blank.
	ErrNoText = errors.New("no text content could be extracted")
)

// DefaultFilename names records whose source has no usable name.
const DefaultFilename = "upload.pdf"

// Input is the per-page text of one invoice.
type Input struct {
	Filename string
	Pages    []string
	OCR      bool
}

// rule binds a field to its label anchors. Patterns are tried in order and
// capture the value in group 1 (and the unit in group 2 for measures).
type rule struct {
	field    Field
	scope    Scope
	patterns []*regexp.Regexp
}

const amount = `([\d,]+\.\d{2})`

var defaultRules = []rule{
	{
		field: FieldReference,
		scope: ScopeFirstPage,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`Reference:\s*(13[\d-]+)`),
			regexp.MustCompile(`Customs Transaction:\s*(13[\d-]+)`),
			regexp.MustCompile(`Cargo Control Number:\s*(13[\d-]+)`),
		},
	},
	{
		field: FieldShipper,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)Shipper(?:[ \t]+Name)?[ \t]*:[ \t]*([^\n]*\S)`),
		},
	},
	{
		field: FieldWeight,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bWeight\s*:?\s*([\d,]+(?:\.\d+)?)\s*(KGS?|LBS?)\b`),
		},
	},
	{
		field: FieldVolume,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bVolume\s*:?\s*([\d,]+(?:\.\d+)?)\s*(M3|CBM|CFT|FT3)\b`),
		},
	},
	{
		field: FieldCommercialValue,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`Value for Fee \(CDN\):\s*` + amount),
		},
	},
	{
		field: FieldGSTHST,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`GST\s*=\s*\$` + amount),
			regexp.MustCompile(`HST\s*=\s*\$` + amount),
		},
	},
	{
		field: FieldDuties,
		scope: ScopeAllPages,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`Duties\s*=\s*\$` + amount),
		},
	},
	{
		field: FieldBrokerFee,
		scope: ScopeFirstPage,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`Amount\s+Due\s*:?\s*CAD\s*` + amount),
		},
	},
}

var whitespace = regexp.MustCompile(`\s+`)

// Parser locates the fixed label anchors of the broker invoice family.
type Parser struct {
	rules []rule
	now   func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithClock overrides the clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// NewParser creates a parser with the default label anchors.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		rules: defaultRules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse builds a record from the page texts of one invoice. Labels that are
// not found leave their field Unknown.
func (p *Parser) Parse(in Input) (*Record, error) {
	if len(in.Pages) == 0 {
		return nil, ErrNoPages
	}
	if blank(in.Pages) {
		return nil, ErrNoText
	}

	rec := &Record{
		timestamp: p.now(),
		filename:  baseName(in.Filename),
		pages:     len(in.Pages),
		source:    SourceText,
	}
	if in.OCR {
		rec.source = SourceOCR
	}

	remaining := len(p.rules)
	for i, text := range in.Pages {
		for _, r := range p.rules {
			if rec.values[r.field].Known() {
				continue
			}
			if r.scope == ScopeFirstPage && i > 0 {
				continue
			}
			if v, ok := r.match(text); ok {
				rec.values[r.field] = v
				remaining--
			}
		}
		if remaining == 0 {
			break
		}
	}

	return rec, nil
}

// match returns the value of the first pattern that matches and parses.
func (r rule) match(text string) (Value, bool) {
	for _, re := range r.patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var (
			v   Value
			err error
		)
		switch r.field.Kind() {
		case KindMoney:
			v, err = MoneyValue(m[1])
		case KindMeasure:
			v, err = MeasureValue(m[1], m[2])
		default:
			v = TextValue(strings.TrimSpace(whitespace.ReplaceAllString(m[1], " ")))
		}
		if err != nil {
			continue
		}
		return v, true
	}
	return Unknown, false
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// baseName strips directories from local paths and URL paths alike.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFilename
	}
	base := filepath.Base(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if base == "." || base == "/" {
		return DefaultFilename
	}
	return base
}
