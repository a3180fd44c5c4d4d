package alerts

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

const criticalMarker = "critical"

type Classifier struct {
	catalog ranges.Catalog
}

func NewClassifier(catalog ranges.Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

// Classify maps status and message text to a severity. Matching is
// case-insensitive; "critical" anywhere in either text means high.
func Classify(status, message string) models.Severity {
	if containsCritical(status) || containsCritical(message) {
		return models.SeverityHigh
	}
	switch models.ParseStatus(status) {
	case models.StatusHigh, models.StatusLow, models.StatusAbnormal:
		return models.SeverityHigh
	case models.StatusBorderline:
		return models.SeverityBorderline
	default:
		return models.SeverityNormal
	}
}

func containsCritical(text string) bool {
	return strings.Contains(strings.ToLower(text), criticalMarker)
}

func normalizeSeverity(raw string) (models.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return "", false
	case "high", "critical":
		return models.SeverityHigh, true
	case "borderline", "medium", "moderate", "warning":
		return models.SeverityBorderline, true
	default:
		return models.SeverityNormal, true
	}
}

// Validate passes an externally supplied alert feed through. Alerts without a
// biomarker, or with neither status nor message, are dropped. Severity text is
// normalized; a missing severity is derived from status and message.
func (c *Classifier) Validate(feed []models.Alert) []models.Alert {
	out := make([]models.Alert, 0, len(feed))
	for i, alert := range feed {
		alert.Biomarker = strings.TrimSpace(alert.Biomarker)
		if alert.Biomarker == "" || (strings.TrimSpace(alert.Status) == "" && strings.TrimSpace(alert.Message) == "") {
			logger.Log.WithFields(map[string]interface{}{
				"index":     i,
				"biomarker": alert.Biomarker,
			}).Warn("dropping alert without biomarker and status or message")
			continue
		}

		severity, ok := normalizeSeverity(string(alert.Severity))
		if !ok {
			severity = Classify(alert.Status, alert.Message)
		} else if containsCritical(alert.Status) || containsCritical(alert.Message) {
			severity = models.SeverityHigh
		}
		alert.Severity = severity
		out = append(out, alert)
	}
	return out
}

// Derive synthesizes one alert per reading whose status is not Normal, in
// chronological then biomarker order. Readings that classify as normal, such
// as unknown or missing statuses, yield nothing.
func (c *Classifier) Derive(normalized []models.NormalizedReport, trends map[string]models.Trend) []models.Alert {
	latestDate := make(map[string]string)
	for _, report := range normalized {
		for name := range report.Biomarkers {
			latestDate[name] = report.ReportDate.String()
		}
	}

	out := make([]models.Alert, 0)
	for _, report := range normalized {
		names := make([]string, 0, len(report.Biomarkers))
		for name := range report.Biomarkers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			reading := report.Biomarkers[name]
			status := reading.Status()
			if status == models.StatusNormal {
				continue
			}
			severity := Classify(reading.RawStatus, "")
			if severity == models.SeverityNormal {
				continue
			}

			trendText := ""
			if latestDate[name] == report.ReportDate.String() {
				trendText = trendSuffix(trends[name].Direction, status)
			}

			value := formatValue(reading)
			date := report.ReportDate
			out = append(out, models.Alert{
				Type:           models.AlertTypeBiomarker,
				Biomarker:      name,
				Status:         reading.RawStatus,
				Value:          value,
				Unit:           reading.Unit,
				Severity:       severity,
				Message:        fmt.Sprintf("%s is %s%s. Current value: %s", name, strings.ToLower(reading.RawStatus), trendText, strings.TrimSpace(value+" "+reading.Unit)),
				Recommendation: c.catalog.Recommendation(name, status),
				Date:           &date,
			})
		}
	}
	return out
}

// TrendAlerts flags series whose overall change exceeds threshold percent in
// the direction they are moving.
func (c *Classifier) TrendAlerts(trends map[string]models.Trend, threshold float64) []models.Alert {
	names := make([]string, 0, len(trends))
	for name := range trends {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.Alert, 0)
	for _, name := range names {
		trend := trends[name]
		switch {
		case trend.Direction == models.DirectionRising && trend.ChangePercentage > threshold:
			out = append(out, models.Alert{
				Type:           models.AlertTypeTrend,
				Biomarker:      name,
				Severity:       models.SeverityBorderline,
				Message:        fmt.Sprintf("%s has increased by %.1f%% over the monitoring period", name, trend.ChangePercentage),
				Recommendation: fmt.Sprintf("Monitor %s closely and consider lifestyle modifications", name),
			})
		case trend.Direction == models.DirectionFalling && trend.ChangePercentage < -threshold:
			out = append(out, models.Alert{
				Type:           models.AlertTypeTrend,
				Biomarker:      name,
				Severity:       models.SeverityBorderline,
				Message:        fmt.Sprintf("%s has decreased by %.1f%% over the monitoring period", name, -trend.ChangePercentage),
				Recommendation: fmt.Sprintf("Monitor %s closely and consider supplementation if appropriate", name),
			})
		}
	}
	return out
}

// CriticalCount counts high-severity alerts. Severity alone decides: a feed
// alert with status "High" but an explicit lower severity is not counted.
func CriticalCount(alerts []models.Alert) int {
	count := 0
	for _, a := range alerts {
		if a.Severity == models.SeverityHigh {
			count++
		}
	}
	return count
}

// Banner renders the critical alert line, or "" when nothing is critical.
func Banner(alerts []models.Alert) string {
	parts := make([]string, 0)
	for _, a := range alerts {
		if a.Severity != models.SeverityHigh {
			continue
		}
		detail := a.Message
		if detail == "" {
			detail = a.Status
		}
		parts = append(parts, a.Biomarker+" - "+detail)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Critical Alert: " + strings.Join(parts, " | ")
}

func trendSuffix(direction string, status models.Status) string {
	switch {
	case direction == models.DirectionRising && status == models.StatusHigh:
		return " (trending upward)"
	case direction == models.DirectionFalling && status == models.StatusLow:
		return " (trending downward)"
	default:
		return ""
	}
}

func formatValue(r models.Reading) string {
	v, ok := r.Numeric()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
