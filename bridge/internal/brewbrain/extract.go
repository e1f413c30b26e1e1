package brewbrain

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/brewbridge/brewbridge/pkg/types"
)

// Structural class names used by the Brew Brain pages.
const (
	classFloatIdentifier   = "FloatIdentifier"
	classMeasurements      = "LatestMeasurementsContainer"
	classLatestMeasurement = "BrewShowLatestMeasurement"
	classMeasurementLabel  = "MeasurementMeasurand"
)

var (
	// measurementsURLPattern matches the measurements endpoint the float page
	// script loads, e.g. "/APIKey/latestMeasurements/1234".
	measurementsURLPattern = regexp.MustCompile(`/APIKey/latestMeasurements/\d+`)

	// numberPattern pulls the number out of a displayed value like "12.345 °P".
	numberPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d{1,3})?`)
)

// SessionToken returns the first ";"-separated segment of a Set-Cookie value,
// dropping attributes such as Path and Expires.
func SessionToken(setCookie string) string {
	token, _, _ := strings.Cut(setCookie, ";")
	return strings.TrimSpace(token)
}

// CleanValue extracts the first signed decimal number (at most three decimals)
// from a displayed measurement value.
func CleanValue(s string) (string, bool) {
	v := numberPattern.FindString(s)
	return v, v != ""
}

// ParseFloats returns one Float per div.FloatIdentifier in document order. The
// name is the anchor text and the ID the last path segment of its href.
// Marked elements without a usable anchor are skipped.
func ParseFloats(page string, logger *slog.Logger) ([]types.Float, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("brewbrain: parse float list: %w", err)
	}

	floats := make([]types.Float, 0)
	doc.Find("div." + classFloatIdentifier).Each(func(i int, s *goquery.Selection) {
		a := s.Find("a").First()
		href, ok := a.Attr("href")
		if !ok {
			logger.Warn("brewbrain: float element without link", "index", i)
			return
		}
		id := href[strings.LastIndex(href, "/")+1:]
		if id == "" {
			logger.Warn("brewbrain: float link without id", "index", i, "href", href)
			return
		}
		floats = append(floats, types.Float{ID: id, Name: strings.TrimSpace(a.Text())})
	})
	return floats, nil
}

// FindMeasurementsPath scans the page's inline scripts for the measurements
// URL. When several scripts (or one script several times) mention it, the
// last occurrence wins. It returns "" when there is none.
func FindMeasurementsPath(page string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("brewbrain: parse float page: %w", err)
	}

	var found string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		matches := measurementsURLPattern.FindAllString(s.Text(), -1)
		if len(matches) > 0 {
			found = matches[len(matches)-1]
		}
	})
	return found, nil
}

// ParseMeasurements reads the measurement blocks of a latest-measurements
// fragment into name -> value. A missing container or blocks without a label
// or number are not errors; they just contribute nothing.
func ParseMeasurements(page string) (types.Measurements, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("brewbrain: parse measurements: %w", err)
	}

	out := make(types.Measurements)
	container := doc.Find("div." + classMeasurements).First()
	container.Find("div." + classLatestMeasurement).Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.Find("span." + classMeasurementLabel).First().Text())
		if name == "" {
			return
		}
		raw := strings.TrimSpace(s.Find("b").First().Find("span").First().Text())
		value, ok := CleanValue(raw)
		if !ok {
			return
		}
		out[name] = value
	})
	return out, nil
}
