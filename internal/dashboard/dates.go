package dashboard

import "time"

// mealDateLayouts are the date shapes the backend has been seen emitting,
// tried in order.
var mealDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseMealDate parses a backend date value. Returns false when the value
// is empty or matches no known layout; callers drop such records.
func ParseMealDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range mealDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// FormatMealDate renders a date the way the dashboard displays it.
func FormatMealDate(date time.Time) string {
	return date.Format("Jan 2, 2006")
}
