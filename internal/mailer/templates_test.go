package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Kai", DisplayName("Kai", "kai@surf.example"))
	assert.Equal(t, "kai", DisplayName("", "kai@surf.example"))
	assert.Equal(t, "kai", DisplayName("", "kai"))
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "25.00", MajorUnits(2500))
	assert.Equal(t, "0.05", MajorUnits(5))
	assert.Equal(t, "0.00", MajorUnits(0))
	assert.Equal(t, "-1.50", MajorUnits(-150))
}

func TestRenderDownloadEmail(t *testing.T) {
	exp := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	html, text, err := RenderDownloadEmail(DownloadEmailData{
		Name:       "Kai",
		TotalMajor: "40.00",
		Grants: []Grant{
			{URL: "https://cdn.test/b/one.jpg", ThumbURL: "https://cdn.test/t/one.jpg", ExpiresAt: exp},
			{URL: "https://cdn.test/b/two.jpg", ThumbURL: "https://cdn.test/t/two.jpg", ExpiresAt: exp},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "Hi Kai")
	assert.Contains(t, html, "40.00")
	assert.Contains(t, html, "https://cdn.test/b/one.jpg")
	assert.Contains(t, html, "https://cdn.test/t/two.jpg")
	assert.Contains(t, html, "3 Mar 2026 12:00 UTC")

	// The plain-text alternative carries the same links.
	assert.Contains(t, text, "https://cdn.test/b/one.jpg")
	assert.Contains(t, text, "https://cdn.test/b/two.jpg")
	assert.NotContains(t, text, "<html>")
}

func TestRenderConfirmationEmailHasNoLinks(t *testing.T) {
	html, text, err := RenderConfirmationEmail("Kai", 7)
	require.NoError(t, err)
	assert.Contains(t, html, "separate")
	assert.Contains(t, text, "7 days")
	assert.NotContains(t, html, "href=\"http")
}

func TestRenderPickupEmails(t *testing.T) {
	html, text, err := RenderPickupEmail(PickupEmailData{Name: "Kai", ItemCount: 2})
	require.NoError(t, err)
	assert.Contains(t, html, "arrange a pickup time")
	assert.Contains(t, text, "2 print(s)")

	ops, err := RenderOpsPickupEmail(OpsPickupData{OrderID: "ord_1", Email: "kai@surf.example", ItemCount: 2})
	require.NoError(t, err)
	assert.Contains(t, ops, "ord_1")
	assert.Contains(t, ops, "kai@surf.example")
}
