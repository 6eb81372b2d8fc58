package internal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type ValueKind int

const (
	ValueMissing ValueKind = iota
	ValueText
	ValueNumber
)

// Value is one spreadsheet cell as read. Numbers keep the text they were read
// from so they can be written back unchanged.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

func TextValue(s string) Value { return Value{Kind: ValueText, Text: s} }

func NumberValue(n float64, raw string) Value {
	if strings.TrimSpace(raw) == "" {
		raw = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return Value{Kind: ValueNumber, Number: n, Text: raw}
}

func MissingValue() Value { return Value{} }

func (v Value) IsMissing() bool { return v.Kind == ValueMissing }

func (v Value) IsText() bool { return v.Kind == ValueText }

func (v Value) String() string {
	switch v.Kind {
	case ValueText, ValueNumber:
		return v.Text
	default:
		return ""
	}
}

// IsBlankCost reports whether the value counts as an absent price:
// missing, the empty string, or numeric zero.
func (v Value) IsBlankCost() bool {
	switch v.Kind {
	case ValueMissing:
		return true
	case ValueText:
		return v.Text == ""
	default:
		return v.Number == 0
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return []byte(strconv.FormatFloat(v.Number, 'f', -1, 64)), nil
	case ValueText:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v.Text); err != nil {
			return nil, err
		}
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = MissingValue()
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = TextValue(s)
		return nil
	}
	n, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return err
	}
	*v = NumberValue(n, string(trimmed))
	return nil
}

type Cell struct {
	Column string
	Value  Value
}

// SourceRow keeps the cells of one input row in column order.
type SourceRow []Cell

// Lookup returns the first cell whose column matches one of the aliases,
// trying aliases in order and ignoring case and surrounding whitespace.
func (r SourceRow) Lookup(aliases ...string) Value {
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		for _, c := range r {
			if strings.EqualFold(strings.TrimSpace(c.Column), alias) {
				return c.Value
			}
		}
	}
	return MissingValue()
}

type Category string

const (
	CategoryPremium  Category = "Premium/Hochleistung"
	CategoryLonglife Category = "Longlife/Spezial"
	CategoryStandard Category = "Standard"
)

type RecordStatus string

const (
	StatusOK         RecordStatus = "OK"
	StatusIncomplete RecordStatus = "Incomplete"
)

type CatalogRecord struct {
	InternalID    string       `json:"internal_id"`
	ArticleNumber string       `json:"article_number"`
	Manufacturer  string       `json:"manufacturer"`
	Description   string       `json:"description"`
	Approvals     []string     `json:"approvals"`
	Category      Category     `json:"category"`
	NetCost       Value        `json:"net_cost"`
	SalePrice     Value        `json:"sale_price"`
	Remarks       string       `json:"remarks"`
	Status        RecordStatus `json:"status"`
	MissingFields string       `json:"missing_fields"`
}

type CategoryCount struct {
	Category Category
	Count    int
}

type RunStatistics struct {
	Total      int
	Incomplete int
	// Categories is ordered by first appearance in the record set.
	Categories []CategoryCount
}

func (s RunStatistics) CategoryCount(c Category) int {
	for _, cc := range s.Categories {
		if cc.Category == c {
			return cc.Count
		}
	}
	return 0
}

type AnalysisRow struct {
	InternalID    string
	ArticleNumber string
	Manufacturer  string
	Description   string
	Category      string
	Approvals     string
	NetCost       string
	SalePrice     string
	Remarks       string
	Status        string
	MissingFields string
}

func (r AnalysisRow) Fields() []string {
	return []string{
		r.InternalID, r.ArticleNumber, r.Manufacturer, r.Description, r.Category, r.Approvals,
		r.NetCost, r.SalePrice, r.Remarks, r.Status, r.MissingFields,
	}
}

// RunSummary describes one archived export run.
type RunSummary struct {
	ID        string
	Source    string
	StartedAt time.Time
	Stats     RunStatistics
}
