package extract

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notificationHTML = `<html><body>
<p><strong>Delivery Date:</strong> Wednesday, April 10</p>
<p>Recipes:</p>
<ul>
  <li>Chicken Tacos</li>
  <li>Veggie Bowl</li>
</ul>
</body></html>`

func testExtractor() *Extractor {
	return NewExtractor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractWellFormedNotification(t *testing.T) {
	order, err := testExtractor().Extract(notificationHTML)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, []string{"Chicken Tacos", "Veggie Bowl"}, order.Items)
	assert.Equal(t, "FreshPrep Order - Chicken Tacos, Veggie Bowl", order.Summary)
	assert.Equal(t, "Chicken Tacos, Veggie Bowl", order.Description)
	for _, item := range order.Items {
		assert.Contains(t, order.Summary, item)
	}

	year := time.Now().UTC().Year()
	assert.Equal(t, time.Date(year, time.April, 10, 17, 0, 0, 0, time.UTC), order.Start)
	assert.Equal(t, time.Date(year, time.April, 10, 18, 0, 0, 0, time.UTC), order.End)
}

func TestExtractNoRecipesList(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p><strong>Delivery Date:</strong> Wednesday, April 10</p>
<p>Thanks for ordering!</p>
</body></html>`)
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestExtractEmptyRecipesList(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p>Recipes:</p>
<ul></ul>
</body></html>`)
	require.NoError(t, err)
	assert.Nil(t, order, "an order with zero items is not an order")
}

func TestExtractRecipesMarkerWithoutSiblingList(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body><p>Recipes:</p></body></html>`)
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestExtractSubstringLabelDoesNotMatch(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p>Recipes: this week</p>
<ul><li>Chicken Tacos</li></ul>
</body></html>`)
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestExtractDeeplyNestedRecipesMarker(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<table><tr><td><div>
<span>Recipes:</span>
<ol><li>Miso Salmon</li></ol>
</div></td></tr></table>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, []string{"Miso Salmon"}, order.Items)
}

func TestExtractMissingDeliveryDateDefaultsToNow(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p>Recipes:</p>
<ul><li>Chicken Tacos</li></ul>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, []string{"Chicken Tacos"}, order.Items)
	assert.WithinDuration(t, time.Now().UTC(), order.Start, time.Minute)
	assert.WithinDuration(t, time.Now().UTC(), order.End, time.Minute)
}

func TestExtractUsesInjectedClockForYear(t *testing.T) {
	e := testExtractor()
	e.now = func() time.Time { return time.Date(2030, time.January, 2, 3, 4, 5, 0, time.UTC) }

	order, err := e.Extract(notificationHTML)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, time.Date(2030, time.April, 10, 17, 0, 0, 0, time.UTC), order.Start)
	assert.Equal(t, time.Date(2030, time.April, 10, 18, 0, 0, 0, time.UTC), order.End)
}

func TestExtractMalformedDeliveryDateLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	e := NewExtractor(slog.New(slog.NewTextHandler(&buf, nil)))

	order, err := e.Extract(`<html><body>
<p><strong>Delivery Date:</strong> sometime next week</p>
<p>Recipes:</p>
<ul><li>Veggie Bowl</li></ul>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Contains(t, buf.String(), "Could not normalize delivery date")
}

func TestExtractMalformedDeliveryDateDoesNotAbortItems(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p><strong>Delivery Date:</strong> sometime next week</p>
<p>Recipes:</p>
<ul><li>Veggie Bowl</li></ul>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.Equal(t, []string{"Veggie Bowl"}, order.Items)
	assert.WithinDuration(t, time.Now().UTC(), order.Start, time.Minute)
}

func TestExtractDeliveryMarkerWithoutSiblingText(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p><strong>Delivery Date:</strong></p>
<p>Recipes:</p>
<ul><li>Chicken Tacos</li></ul>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, []string{"Chicken Tacos"}, order.Items)
}

func TestExtractItemsKeepDocumentOrder(t *testing.T) {
	order, err := testExtractor().Extract(`<html><body>
<p>Recipes:</p>
<ul>
  <li>Zucchini Pasta</li>
  <li>Apple Salad</li>
  <li>Miso Salmon</li>
</ul>
</body></html>`)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, []string{"Zucchini Pasta", "Apple Salad", "Miso Salmon"}, order.Items)
}
