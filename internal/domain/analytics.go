package domain

import "sort"

// ZoneAlertCount is one zone's share of stored alerts.
// Params: zone identity and alert count.
// Returns: aggregation row for the analytics summary.
type ZoneAlertCount struct {
	ZoneID string `json:"zone_id"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

// MonthAlertCount is one calendar month's share of stored alerts.
// Params: month in YYYY-MM form and alert count.
// Returns: aggregation row for the analytics summary.
type MonthAlertCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// AlertMetrics summarizes the stored alerts for dashboard consumers.
// Params: total plus priority, zone, and month breakdowns.
// Returns: read-only analytics snapshot.
type AlertMetrics struct {
	Total      int               `json:"total"`
	ByPriority map[Priority]int  `json:"by_priority"`
	ByZone     []ZoneAlertCount  `json:"by_zone"`
	ByMonth    []MonthAlertCount `json:"by_month"`
}

// BuildAlertMetrics aggregates alerts into the analytics summary.
// Zone rows cover only zones that have at least one alert; alerts without
// a zone (or with a zone that no longer exists) count toward the total and
// the other breakdowns but not the zone rows.
// Params: stored alerts and zones.
// Returns: metrics with deterministic row ordering (zones by count then
// name, months ascending).
func BuildAlertMetrics(alerts []Alert, zones []Zone) AlertMetrics {
	metrics := AlertMetrics{
		Total: len(alerts),
		ByPriority: map[Priority]int{
			PriorityLow:    0,
			PriorityMedium: 0,
			PriorityHigh:   0,
		},
		ByZone:  []ZoneAlertCount{},
		ByMonth: []MonthAlertCount{},
	}

	zoneNames := make(map[string]string, len(zones))
	for _, zone := range zones {
		zoneNames[zone.ID] = zone.Name
	}

	zoneCounts := make(map[string]int)
	monthCounts := make(map[string]int)
	for _, alert := range alerts {
		metrics.ByPriority[alert.Priority]++
		if _, known := zoneNames[alert.ZoneID]; alert.ZoneID != "" && known {
			zoneCounts[alert.ZoneID]++
		}
		monthCounts[alert.CreatedAt.UTC().Format("2006-01")]++
	}

	for zoneID, count := range zoneCounts {
		metrics.ByZone = append(metrics.ByZone, ZoneAlertCount{
			ZoneID: zoneID, Name: zoneNames[zoneID], Count: count,
		})
	}
	sort.Slice(metrics.ByZone, func(i, j int) bool {
		if metrics.ByZone[i].Count != metrics.ByZone[j].Count {
			return metrics.ByZone[i].Count > metrics.ByZone[j].Count
		}
		return metrics.ByZone[i].Name < metrics.ByZone[j].Name
	})

	for month, count := range monthCounts {
		metrics.ByMonth = append(metrics.ByMonth, MonthAlertCount{Month: month, Count: count})
	}
	sort.Slice(metrics.ByMonth, func(i, j int) bool {
		return metrics.ByMonth[i].Month < metrics.ByMonth[j].Month
	})

	return metrics
}
