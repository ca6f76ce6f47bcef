package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/daviddao/casedesk/internal/model"
)

// Stats fetches the aggregate case statistics.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	const op = "stats"
	data, err := c.do(ctx, op, http.MethodGet, "/cases/stats", nil, nil)
	if err != nil {
		return model.EmptyStats(), err
	}
	stats, err := decodeStats(data)
	if err != nil {
		return model.EmptyStats(), fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// Insights fetches the average resolution time and the busiest category.
func (c *Client) Insights(ctx context.Context) (model.Insights, error) {
	const op = "insights"
	var out model.Insights
	data, err := c.do(ctx, op, http.MethodGet, "/cases/insights", nil, nil)
	if err != nil {
		return out, err
	}
	if err := decode(op, data, &out); err != nil {
		return model.Insights{}, err
	}
	return out, nil
}

// Stats field names differ between backend versions. The first name in each
// list is what the current backend emits and wins when both are present.
var (
	totalKeys      = []string{"total_cases", "total"}
	resolvedKeys   = []string{"resolved_cases", "resolved"}
	pendingKeys    = []string{"pending_cases", "pending"}
	categoryKeys   = []string{"category_breakdown", "byCategory"}
	priorityKeys   = []string{"priority_breakdown", "byPriority"}
	dailyKeys      = []string{"daily_breakdown", "daily"}
	resolutionKeys = []string{"avg_resolution_time_days", "avgResolutionTimeDays"}
)

// decodeStats reconciles either stats shape into model.Stats. Missing fields
// decode as zero; an empty body is an empty snapshot.
func decodeStats(data []byte) (model.Stats, error) {
	stats := model.EmptyStats()
	if len(bytes.TrimSpace(data)) == 0 {
		return stats, nil
	}
	if !gjson.ValidBytes(data) {
		return stats, fmt.Errorf("decode response: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return stats, fmt.Errorf("decode response: expected object, got %s", root.Type)
	}

	stats.Total = int(firstOf(root, totalKeys).Int())
	stats.Resolved = int(firstOf(root, resolvedKeys).Int())
	stats.Pending = int(firstOf(root, pendingKeys).Int())
	stats.AvgResolutionDays = firstOf(root, resolutionKeys).Float()
	stats.ByCategory = breakdown(firstOf(root, categoryKeys))
	stats.ByPriority = breakdown(firstOf(root, priorityKeys))
	stats.Daily = breakdown(firstOf(root, dailyKeys))
	return stats, nil
}

func firstOf(root gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if r := root.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func breakdown(r gjson.Result) model.Breakdown {
	out := model.Breakdown{}
	if !r.IsObject() {
		return out
	}
	r.ForEach(func(k, v gjson.Result) bool {
		label := k.String()
		if label == "" || label == "null" {
			label = "(unclassified)"
		}
		out[label] += int(v.Int())
		return true
	})
	return out
}
