package event

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const descriptionLimit = 150

// RenderContent builds the text body shown for an event message.
func RenderContent(e Event) string {
	var b strings.Builder
	b.WriteString("🎫 " + strings.TrimSpace(e.Title))

	switch {
	case e.VenueName != nil && e.VenueAddress != nil:
		fmt.Fprintf(&b, "\n📍 %s, %s", *e.VenueName, *e.VenueAddress)
	case e.VenueName != nil:
		b.WriteString("\n📍 " + *e.VenueName)
	case e.VenueAddress != nil:
		b.WriteString("\n📍 " + *e.VenueAddress)
	}

	if !e.StartDate.IsZero() {
		b.WriteString("\n🕐 " + e.StartDate.UTC().Format("Mon Jan 2, 3:04 PM MST"))
	}

	if p := formatPrice(e.PriceMin, e.PriceMax); p != "" {
		b.WriteString("\n💰 " + p)
	}

	var tags []string
	if e.Classification != nil {
		tags = append(tags, *e.Classification)
	}
	if e.Genre != nil && (e.Classification == nil || *e.Genre != *e.Classification) {
		tags = append(tags, *e.Genre)
	}
	if len(tags) > 0 {
		b.WriteString("\n🎭 " + strings.Join(tags, " · "))
	}

	if e.Description != nil {
		b.WriteString("\n\n" + Truncate(*e.Description, descriptionLimit))
	}
	return b.String()
}

func formatPrice(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil && *hi > *lo:
		return fmt.Sprintf("$%.2f - $%.2f", *lo, *hi)
	case lo != nil && *lo == 0 && (hi == nil || *hi == 0):
		return "Free"
	case lo != nil:
		return fmt.Sprintf("$%.2f", *lo)
	case hi != nil:
		return fmt.Sprintf("up to $%.2f", *hi)
	}
	return ""
}

// Truncate shortens s to at most limit runes, ending with an ellipsis when cut.
func Truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:limit])) + "…"
}
