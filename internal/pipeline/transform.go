package pipeline

import (
	"fmt"
	"strings"

	"oelexport/internal"
	"oelexport/internal/util"
)

const minApprovalLen = 2

var approvalSeparators = []string{"\n", ";"}

type categoryRule struct {
	match    func(lower string) bool
	category internal.Category
}

// categoryRules are evaluated in order and the first match wins. The premium
// rule must stay ahead of the "0w" rule because "0w-40" contains "0w".
var categoryRules = []categoryRule{
	{
		match:    func(s string) bool { return util.ContainsAny(s, "premium", "0w-40") },
		category: internal.CategoryPremium,
	},
	{
		match:    func(s string) bool { return util.ContainsAny(s, "longlife", "spezial", "0w", "5w-30") },
		category: internal.CategoryLonglife,
	},
}

// Labels used in missing_fields, in reporting order.
const (
	LabelManufacturer = "Manufacturer"
	LabelDescription  = "Description"
	LabelCostPrice    = "Cost-Price"
	LabelApprovals    = "Approvals"
)

// ParseApprovals splits the free-text approvals field on semicolons and
// newlines and drops fragments of two characters or fewer. Non-text input
// yields an empty list.
func ParseApprovals(v internal.Value) []string {
	if !v.IsText() {
		return []string{}
	}
	return util.SplitMulti(v.Text, approvalSeparators, minApprovalLen)
}

// Categorize assigns the product tier from the description.
func Categorize(description internal.Value) internal.Category {
	if !description.IsText() {
		return internal.CategoryStandard
	}
	lower := strings.ToLower(description.Text)
	for _, rule := range categoryRules {
		if rule.match(lower) {
			return rule.category
		}
	}
	return internal.CategoryStandard
}

// MissingFields returns the labels of every failed completeness check.
func MissingFields(rec internal.CatalogRecord) []string {
	var missing []string
	if rec.Manufacturer == "" {
		missing = append(missing, LabelManufacturer)
	}
	if rec.Description == "" {
		missing = append(missing, LabelDescription)
	}
	if rec.NetCost.IsBlankCost() {
		missing = append(missing, LabelCostPrice)
	}
	if len(rec.Approvals) == 0 {
		missing = append(missing, LabelApprovals)
	}
	return missing
}

func InternalID(position int) string {
	return fmt.Sprintf("OEL-%03d", position)
}

type Transformer struct {
	Columns ColumnMap
}

func NewTransformer(cols ColumnMap) Transformer {
	return Transformer{Columns: cols}
}

// Transform turns one source row into a catalog record. position is the
// 1-based index of the row in the input table.
func (t Transformer) Transform(row internal.SourceRow, position int) internal.CatalogRecord {
	remarks := row.Lookup(t.Columns.Remarks...)
	description := row.Lookup(t.Columns.Description...)

	rec := internal.CatalogRecord{
		InternalID:    InternalID(position),
		ArticleNumber: strings.TrimSpace(row.Lookup(t.Columns.ArticleNumber...).String()),
		Manufacturer:  strings.TrimSpace(row.Lookup(t.Columns.Manufacturer...).String()),
		Description:   strings.TrimSpace(description.String()),
		Approvals:     ParseApprovals(remarks),
		Category:      Categorize(description),
		NetCost:       row.Lookup(t.Columns.NetCost...),
		SalePrice:     row.Lookup(t.Columns.SalePrice...),
	}
	if remarks.IsText() {
		rec.Remarks = remarks.Text
	}

	missing := MissingFields(rec)
	rec.Status = internal.StatusOK
	if len(missing) > 0 {
		rec.Status = internal.StatusIncomplete
		rec.MissingFields = strings.Join(missing, ", ")
	}
	return rec
}
