package aqi

import "fmt"

// Category is one of the six US EPA health-impact bands for an AQI value.
type Category string

const (
	CategoryGood      Category = "Good"
	CategoryModerate  Category = "Moderate"
	CategorySensitive Category = "Unhealthy for Sensitive Groups"
	CategoryUnhealthy Category = "Unhealthy"
	CategoryVery      Category = "Very Unhealthy"
	CategoryHazardous Category = "Hazardous"
)

// Categories lists all bands in ascending severity order.
var Categories = []Category{
	CategoryGood,
	CategoryModerate,
	CategorySensitive,
	CategoryUnhealthy,
	CategoryVery,
	CategoryHazardous,
}

// Classify maps an integer AQI value to its health category.
// Values outside [0, 500] are rejected with ErrAQIRange; callers that want
// clamping must clamp before calling. No value is ever silently defaulted.
func Classify(v int) (Category, error) {
	if v < 0 || v > 500 {
		return "", fmt.Errorf("%w: %d", ErrAQIRange, v)
	}
	switch {
	case v <= 50:
		return CategoryGood, nil
	case v <= 100:
		return CategoryModerate, nil
	case v <= 150:
		return CategorySensitive, nil
	case v <= 200:
		return CategoryUnhealthy, nil
	case v <= 300:
		return CategoryVery, nil
	default:
		return CategoryHazardous, nil
	}
}

// Severity returns the ordinal position of the category, 0 (Good) through
// 5 (Hazardous). Unknown categories return -1.
func (c Category) Severity() int {
	for i, cat := range Categories {
		if c == cat {
			return i
		}
	}
	return -1
}

// categoryColors maps each band to its conventional EPA display color.
var categoryColors = map[Category]string{
	CategoryGood:      "#00e400",
	CategoryModerate:  "#ffff00",
	CategorySensitive: "#ff7e00",
	CategoryUnhealthy: "#ff0000",
	CategoryVery:      "#8f3f97",
	CategoryHazardous: "#7e0023",
}

// DefaultColor is the fallback for unknown categories.
const DefaultColor = "#999999"

// CategoryColor returns the display color token for a category. The color is
// presentation metadata carried alongside the category, never derived from
// the AQI value directly.
func CategoryColor(c Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return DefaultColor
}
