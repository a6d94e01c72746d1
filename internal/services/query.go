package services

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// RecordData is one materialized row handed to the query engine.
type RecordData struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Values    map[string]any `json:"values"`
}

// Page size bounds for record queries.
const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// ApplyFilters keeps the records matching the filters. Logic "and"
// (the default) intersects the filters one by one; "or" keeps a record
// when any filter matches. Filters with a blank field id are ignored.
func ApplyFilters(records []RecordData, filters []models.FilterItem, logic string, fields map[string]*models.Field) []RecordData {
	active := filters[:0:0]
	for _, f := range filters {
		if f.FieldID != "" {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return records
	}

	if logic == "or" {
		out := make([]RecordData, 0, len(records))
		for _, rec := range records {
			for _, f := range active {
				if matchFilter(rec.Values[f.FieldID], f, fields[f.FieldID]) {
					out = append(out, rec)
					break
				}
			}
		}
		return out
	}

	out := records
	for _, f := range active {
		kept := make([]RecordData, 0, len(out))
		for _, rec := range out {
			if matchFilter(rec.Values[f.FieldID], f, fields[f.FieldID]) {
				kept = append(kept, rec)
			}
		}
		out = kept
	}
	return out
}

func matchFilter(value any, f models.FilterItem, field *models.Field) bool {
	op := f.Op
	if op == "" {
		op = "contains"
	}

	switch op {
	case "contains":
		return containsFold(value, f.Value)
	case "eq", "equals":
		return valuesEqual(value, f.Value)
	case "neq":
		return !valuesEqual(value, f.Value)
	case "in":
		items, ok := f.Value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if valuesEqual(value, item) {
				return true
			}
		}
		return false
	case "nin":
		items, ok := f.Value.([]any)
		if !ok {
			return true
		}
		for _, item := range items {
			if valuesEqual(value, item) {
				return false
			}
		}
		return true
	case "empty":
		return isEmptyValue(value)
	case "not_empty":
		return !isEmptyValue(value)
	case "gt", "gte", "lt", "lte":
		return compareOrdered(value, f.Value, op, field)
	default:
		// Unknown operators degrade to the field's natural match:
		// exact for single selects, substring otherwise.
		if field != nil && field.Type == models.FieldTypeSingleSelect {
			return valuesEqual(value, f.Value)
		}
		return containsFold(value, f.Value)
	}
}

func containsFold(value, needle any) bool {
	v := stringifyValue(value)
	n := stringifyValue(needle)
	return strings.Contains(strings.ToLower(v), strings.ToLower(n))
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return stringifyValue(a) == stringifyValue(b)
}

// compareOrdered handles gt/gte/lt/lte. Date fields compare their
// string forms directly; everything else must be numeric on both sides.
func compareOrdered(value, bound any, op string, field *models.Field) bool {
	if field != nil && field.Type == models.FieldTypeDate {
		vs, vok := value.(string)
		bs, bok := bound.(string)
		if vok && bok {
			return orderedResult(strings.Compare(vs, bs), op)
		}
	}
	vf, vok := toFloat(value)
	bf, bok := toFloat(bound)
	if !vok || !bok {
		return false
	}
	switch {
	case vf < bf:
		return orderedResult(-1, op)
	case vf > bf:
		return orderedResult(1, op)
	default:
		return orderedResult(0, op)
	}
}

func orderedResult(cmp int, op string) bool {
	switch op {
	case "gt":
		return cmp > 0
	case "gte":
		return cmp >= 0
	case "lt":
		return cmp < 0
	case "lte":
		return cmp <= 0
	}
	return false
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func stringifyValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// sortKey orders mixed cell values: numbers sort before timestamps,
// timestamps before strings. String keys fold case.
type sortKey struct {
	kind int // 0 number, 1 time, 2 string
	num  float64
	t    time.Time
	str  string
}

func makeSortKey(value any, field *models.Field) sortKey {
	if f, ok := toFloat(value); ok {
		return sortKey{kind: 0, num: f}
	}
	if s, ok := value.(string); ok {
		if field != nil && field.Type == models.FieldTypeDate {
			if t, err := parseDateValue(s); err == nil {
				return sortKey{kind: 1, t: t}
			}
		}
		return sortKey{kind: 2, str: strings.ToLower(s)}
	}
	return sortKey{kind: 2, str: strings.ToLower(stringifyValue(value))}
}

func parseDateValue(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (k sortKey) less(other sortKey) bool {
	if k.kind != other.kind {
		return k.kind < other.kind
	}
	switch k.kind {
	case 0:
		return k.num < other.num
	case 1:
		return k.t.Before(other.t)
	default:
		return k.str < other.str
	}
}

// ApplySorts orders records by the sort keys. Keys are applied right to
// left with a stable sort, so the first key dominates. Records missing
// a key's value sink to the end regardless of direction.
func ApplySorts(records []RecordData, sorts []models.SortItem, fields map[string]*models.Field) []RecordData {
	if len(sorts) == 0 {
		return records
	}
	out := make([]RecordData, len(records))
	copy(out, records)

	for i := len(sorts) - 1; i >= 0; i-- {
		s := sorts[i]
		if s.FieldID == "" {
			continue
		}
		desc := strings.EqualFold(s.Direction, "desc")
		field := fields[s.FieldID]

		present := make([]RecordData, 0, len(out))
		missing := make([]RecordData, 0)
		for _, rec := range out {
			if rec.Values[s.FieldID] == nil {
				missing = append(missing, rec)
			} else {
				present = append(present, rec)
			}
		}

		sort.SliceStable(present, func(a, b int) bool {
			ka := makeSortKey(present[a].Values[s.FieldID], field)
			kb := makeSortKey(present[b].Values[s.FieldID], field)
			if desc {
				return kb.less(ka)
			}
			return ka.less(kb)
		})

		out = append(present, missing...)
	}
	return out
}

// Paginate slices a window out of the ordered records. The cursor is an
// opaque offset token; an empty next cursor means the end was reached.
func Paginate(records []RecordData, cursor string, pageSize int) ([]RecordData, string, *response.AppError) {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, "", response.NewBadRequest("pageSize must be between 1 and 500")
	}

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", response.NewBadRequest("invalid cursor")
		}
		offset = n
	}

	if offset >= len(records) {
		return []RecordData{}, "", nil
	}

	end := offset + pageSize
	next := ""
	if end < len(records) {
		next = strconv.Itoa(end)
	} else {
		end = len(records)
	}
	return records[offset:end], next, nil
}
