package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(path string) (string, error) { return s.text, s.err }

func TestClassifyDetectsProvidersAndEmails(t *testing.T) {
	text := "We use Broadridge for proxy voting. Our compliance team can be reached at compliance@acme.com. " +
		"For proxy questions, email proxy@acme.com. This firm integrates ESG investing principles into analysis. " +
		"The firm does not vote proxies on behalf of clients."

	c := New(DefaultCatalog(), stubExtractor{text: text})
	a := c.Classify("brochure.pdf")

	require.False(t, a.Skipped)
	assert.Contains(t, a.ProxyProviders, "Broadridge")
	assert.NotEmpty(t, a.ESGLanguageExcerpt)
	assert.Contains(t, a.EmailAll, "compliance@acme.com")
	assert.Contains(t, a.EmailAll, "proxy@acme.com")
	assert.Contains(t, a.EmailCompliance, "compliance@acme.com")
	assert.Contains(t, a.EmailProxy, "proxy@acme.com")
	assert.NotEmpty(t, a.DoesNotVoteMarker)
}

func TestClassifySkipsOnExtractionError(t *testing.T) {
	c := New(DefaultCatalog(), stubExtractor{err: assertError{}})
	a := c.Classify("brochure.pdf")
	assert.True(t, a.Skipped)
}

func TestClassifySkipsOnEmptyText(t *testing.T) {
	c := New(DefaultCatalog(), stubExtractor{text: ""})
	a := c.Classify("brochure.pdf")
	assert.True(t, a.Skipped)
}

func TestClassifyIsDeterministic(t *testing.T) {
	text := "Sustainalytics provides ESG investing data. Contact item17@acme.com for Item 17 voting client securities questions."
	c := New(DefaultCatalog(), stubExtractor{text: text})

	a1 := c.Classify("x.pdf")
	a2 := c.Classify("x.pdf")
	assert.Equal(t, a1, a2)
}

func TestEmailMayAppearInMultipleContexts(t *testing.T) {
	text := "Our compliance and proxy team shares one inbox: both@acme.com handles compliance and proxy matters."
	c := New(DefaultCatalog(), stubExtractor{text: text})
	a := c.Classify("x.pdf")

	assert.Contains(t, a.EmailCompliance, "both@acme.com")
	assert.Contains(t, a.EmailProxy, "both@acme.com")
}

func TestSplitSentencesTreatsRepeatedTerminatorsAsOne(t *testing.T) {
	sentences := splitSentences("Wait... really?! Yes.")
	assert.Len(t, sentences, 3)
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
