package services

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gridbase/gridbase/internal/models"
	"github.com/gridbase/gridbase/pkg/response"
)

// emptyGroupLabel buckets records whose group value is missing.
const emptyGroupLabel = "(空)"

// Metric names for widget aggregation.
const (
	MetricCount = "count"
	MetricSum   = "sum"
	MetricAvg   = "avg"
)

// AggregateMetric computes a single number over the records.
// Averages over no numeric values yield 0; sums and averages round to
// 2 decimals.
func AggregateMetric(records []RecordData, metric, fieldID string) (float64, *response.AppError) {
	switch metric {
	case MetricCount, "":
		return float64(len(records)), nil
	case MetricSum:
		sum, _ := sumField(records, fieldID)
		return round2(sum), nil
	case MetricAvg:
		sum, n := sumField(records, fieldID)
		if n == 0 {
			return 0, nil
		}
		return round2(sum / float64(n)), nil
	default:
		return 0, response.NewBadRequest("unknown metric: " + metric)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sumField(records []RecordData, fieldID string) (float64, int) {
	var sum float64
	var n int
	for _, rec := range records {
		if f, ok := metricNumber(rec.Values[fieldID]); ok {
			sum += f
			n++
		}
	}
	return sum, n
}

// metricNumber widens toFloat for aggregation only: trimmed numeric
// strings count toward sums and averages. Filter matching keeps the
// strict form.
func metricNumber(value any) (float64, bool) {
	if f, ok := toFloat(value); ok {
		return f, true
	}
	if s, ok := value.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// GroupBucket is one aggregated slice of a bar, pie or line chart.
// Label marshals as "date" for line charts and "name" otherwise.
type GroupBucket struct {
	Label string  `json:"-"`
	Value float64 `json:"value"`
}

// GroupPoint is the wire form of a bucket.
type GroupPoint map[string]any

// AggregateGroups buckets records by the group field and computes the
// metric per bucket. Records with no cell for the group field are left
// out entirely; a present but empty cell collapses into the "(空)"
// bucket. Buckets come back sorted by label.
func AggregateGroups(records []RecordData, groupFieldID, metric, fieldID string) ([]GroupBucket, *response.AppError) {
	if groupFieldID == "" {
		return nil, response.NewBadRequest("groupFieldId is required")
	}

	grouped := make(map[string][]RecordData)
	for _, rec := range records {
		v, ok := rec.Values[groupFieldID]
		if !ok {
			continue
		}
		label := emptyGroupLabel
		if !isEmptyValue(v) {
			label = stringifyValue(v)
		}
		grouped[label] = append(grouped[label], rec)
	}

	labels := make([]string, 0, len(grouped))
	for label := range grouped {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	buckets := make([]GroupBucket, 0, len(labels))
	for _, label := range labels {
		value, appErr := AggregateMetric(grouped[label], metric, fieldID)
		if appErr != nil {
			return nil, appErr
		}
		buckets = append(buckets, GroupBucket{Label: label, Value: value})
	}
	return buckets, nil
}

// GroupPoints renders buckets for the wire. Line charts key the label
// as "date", bar and pie as "name".
func GroupPoints(buckets []GroupBucket, kind string) []GroupPoint {
	labelKey := "name"
	if kind == models.WidgetLine {
		labelKey = "date"
	}
	points := make([]GroupPoint, 0, len(buckets))
	for _, b := range buckets {
		points = append(points, GroupPoint{labelKey: b.Label, "value": b.Value})
	}
	return points
}

// DefaultWidgetLimit caps a table widget when no limit is requested.
const DefaultWidgetLimit = 20

// TableWindow returns the newest records for a table widget. Limit 0
// falls back to the default; anything else is clamped to [1, 500].
func TableWindow(records []RecordData, limit int) []RecordData {
	max := limit
	switch {
	case max <= 0:
		max = DefaultWidgetLimit
	case max > MaxPageSize:
		max = MaxPageSize
	}

	out := make([]RecordData, len(records))
	copy(out, records)
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})

	if len(out) > max {
		out = out[:max]
	}
	return out
}
