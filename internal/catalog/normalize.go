package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// OnDemandPrefix keeps on-demand identifiers disjoint from seed identifiers.
const OnDemandPrefix = "user-"

// NormalizeTopicID derives the stable identifier part of a free-text topic.
//
// The title is composed to NFC, Unicode case folded, and trimmed; every run of
// whitespace becomes a single "-". Accents are kept, so "Fundos Imobiliários"
// and "fundos  imobiliários" both map to "fundos-imobiliários". This mapping is
// the only duplicate detection for on-demand topics and must not change.
func NormalizeTopicID(title string) string {
	s := norm.NFC.String(title)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), "-")
}

// OnDemandID returns the catalog identifier for an on-demand topic, or "" if
// the topic is blank.
func OnDemandID(title string) string {
	id := NormalizeTopicID(title)
	if id == "" {
		return ""
	}
	return OnDemandPrefix + id
}
