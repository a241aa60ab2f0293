package classify

import (
	"regexp"
	"strings"

	"github.com/sells-group/iapd-pipeline/internal/textextract"
)

// maxESGExcerpt bounds esg_language_excerpt (spec.md §4.E point 2).
const maxESGExcerpt = 500

// sentenceSplit segments text on `.`, `!`, or `?` followed by whitespace or
// end-of-text; a terminator followed by any other character (as in
// "acme.com") stays inside the sentence. It is a single deterministic pass
// with no backtracking that could go quadratic on pathological input.
var sentenceSplit = regexp.MustCompile(`(?:[^.!?]|[.!?]+[^.!?\s])*[.!?]+(?:\s+|$)|(?:[^.!?]|[.!?]+[^.!?\s])+$`)

// Analysis is the per-brochure classification result (BrochureAnalysis).
type Analysis struct {
	ProxyProviders       []string
	ClassActionProviders []string
	ESGProviders         []string
	ESGLanguageExcerpt   string
	EmailAll             []string
	EmailCompliance      []string
	EmailProxy           []string
	EmailBrochure        []string
	EmailItem17          []string
	DoesNotVoteMarker    string
	Skipped              bool
	SkipReason           string
}


// Classifier implements BrochureClassifier (component E).
type Classifier struct {
	catalog   *Catalog
	extractor textextract.Extractor
}

// New builds a Classifier over the given pattern catalog and text
// extractor.
func New(catalog *Catalog, extractor textextract.Extractor) *Classifier {
	return &Classifier{catalog: catalog, extractor: extractor}
}

// Classify extracts text from path and applies the pattern catalog. A
// missing file, extraction error, or empty text yields a Skipped Analysis
// rather than an error: classification never aborts OutputMerger.
func (c *Classifier) Classify(path string) Analysis {
	text, err := c.extractor.Extract(path)
	if err != nil || text == "" {
		reason := "empty extracted text"
		if err != nil {
			reason = err.Error()
		}
		return Analysis{Skipped: true, SkipReason: reason}
	}

	sentences := splitSentences(text)

	a := Analysis{
		ProxyProviders:       matchProviders(text, c.catalog.ProxyProviders),
		ClassActionProviders: matchProviders(text, c.catalog.ClassActionProviders),
		ESGProviders:         matchProviders(text, c.catalog.ESGProviders),
		ESGLanguageExcerpt:   esgExcerpt(text, sentences, c.catalog.ESGLanguage),
		DoesNotVoteMarker:    doesNotVoteMarker(text, c.catalog.DoesNotVote),
	}

	a.EmailAll = dedupEmails(c.catalog.Email.FindAllString(text, -1))
	a.EmailCompliance = emailsInContext(sentences, c.catalog.Email, c.catalog.EmailContext[ContextCompliance])
	a.EmailProxy = emailsInContext(sentences, c.catalog.Email, c.catalog.EmailContext[ContextProxy])
	a.EmailBrochure = emailsInContext(sentences, c.catalog.Email, c.catalog.EmailContext[ContextBrochure])
	a.EmailItem17 = emailsInContext(sentences, c.catalog.Email, c.catalog.EmailContext[ContextItem17])

	return a
}

// splitSentences returns the sentence-delimited substrings of text in
// order, tolerating repeated terminators ("...", "?!").
func splitSentences(text string) []string {
	raw := sentenceSplit.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// matchProviders returns the canonical tags whose pattern matches text, in
// first-match (declaration) order, deduplicated.
func matchProviders(text string, patterns []TaggedPattern) []string {
	var tags []string
	for _, p := range patterns {
		if p.Pattern.MatchString(text) {
			tags = append(tags, p.Tag)
		}
	}
	return tags
}

// esgExcerpt returns the first sentence matching any esg_language pattern,
// truncated to maxESGExcerpt characters.
func esgExcerpt(text string, sentences []string, patterns []TaggedPattern) string {
	for _, s := range sentences {
		for _, p := range patterns {
			if p.Pattern.MatchString(s) {
				excerpt := strings.TrimSpace(s)
				if len(excerpt) > maxESGExcerpt {
					excerpt = excerpt[:maxESGExcerpt]
				}
				return excerpt
			}
		}
	}
	_ = text
	return ""
}

// doesNotVoteMarker returns the canonical label of the first does_not_vote
// pattern to match, or "" if none match.
func doesNotVoteMarker(text string, patterns []TaggedPattern) string {
	for _, p := range patterns {
		if p.Pattern.MatchString(text) {
			return p.Tag
		}
	}
	return ""
}

// dedupEmails preserves first-occurrence order while removing repeats.
func dedupEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	var out []string
	for _, e := range emails {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// emailsInContext finds sentences matching contextPattern and returns the
// deduplicated emails found inside those sentences, in first-occurrence
// order. A single email may land in more than one context subset.
func emailsInContext(sentences []string, emailPattern, contextPattern *regexp.Regexp) []string {
	var found []string
	for _, s := range sentences {
		if !contextPattern.MatchString(s) {
			continue
		}
		found = append(found, emailPattern.FindAllString(s, -1)...)
	}
	return dedupEmails(found)
}
