package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"oelexport/internal"
	"oelexport/internal/util"
)

type Index struct {
	Records      []internal.CatalogRecord
	ByInternalID map[string]int
	ByArticle    map[string][]int
}

// Load reads a catalog document written by the export.
func Load(path string) ([]internal.CatalogRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []internal.CatalogRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return records, nil
}

func BuildIndex(records []internal.CatalogRecord) *Index {
	idx := &Index{
		Records:      records,
		ByInternalID: map[string]int{},
		ByArticle:    map[string][]int{},
	}
	for i, rec := range records {
		idx.ByInternalID[normalizeCode(rec.InternalID)] = i
		if code := normalizeCode(rec.ArticleNumber); code != "" {
			idx.ByArticle[code] = append(idx.ByArticle[code], i)
		}
	}
	return idx
}

// Lookup finds records by exact internal id or article number, ignoring
// case and spaces.
func (idx *Index) Lookup(code string) []internal.CatalogRecord {
	norm := normalizeCode(code)
	if norm == "" {
		return nil
	}
	if i, ok := idx.ByInternalID[norm]; ok {
		return []internal.CatalogRecord{idx.Records[i]}
	}
	var out []internal.CatalogRecord
	for _, i := range idx.ByArticle[norm] {
		out = append(out, idx.Records[i])
	}
	return out
}

// Search returns, in catalog order, every record where the query fuzzily
// matches the approvals, manufacturer, description, category, article number
// or internal id. A blank query returns all records.
func (idx *Index) Search(query string) []internal.CatalogRecord {
	query = strings.TrimSpace(query)
	if query == "" {
		return idx.Records
	}
	out := []internal.CatalogRecord{}
	for _, rec := range idx.Records {
		fields := []string{
			strings.Join(rec.Approvals, ", "),
			rec.Manufacturer,
			rec.Description,
			string(rec.Category),
			rec.ArticleNumber,
			rec.InternalID,
		}
		for _, f := range fields {
			if util.FuzzyMatch(f, query) {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func normalizeCode(input string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), " ", ""))
}
