//go:build e2e

package e2e

import (
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillPostingForm(t *testing.T, page playwright.Page, title string) {
	t.Helper()
	fields := map[string]string{
		"title":        title,
		"company":      "E2E Corp",
		"location":     "Remote",
		"salary_range": "$100k - $120k",
		"description":  "Keep the browser tests green.",
		"requirements": "- Go\n- Playwright",
		"how_to_apply": "e2e@example.com",
	}
	for name, value := range fields {
		require.NoError(t, page.Locator(fmt.Sprintf("[name='%s']", name)).Fill(value))
	}
	_, err := page.Locator("select[name='job_type']").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("Remote"),
	})
	require.NoError(t, err)
}

func TestPost_CreatedPostingListedFirst(t *testing.T) {
	page := newPage(t)
	login(t, page, testUser, testPassword)
	require.NoError(t, page.WaitForURL("**/admin/post"))

	title := fmt.Sprintf("E2E Engineer %d", time.Now().UnixNano())
	fillPostingForm(t, page, title)
	require.NoError(t, page.Locator(".form-card button[type='submit']").Click())
	require.NoError(t, page.WaitForURL(baseURL+"/"))

	text, err := page.Locator(".flash-success").TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Job posted successfully!", text)

	first, err := page.Locator(".job-card h2").First().TextContent()
	require.NoError(t, err)
	assert.Equal(t, title, first)

	// detail page of the new posting
	require.NoError(t, page.Locator(".job-card h2 a").First().Click())
	require.NoError(t, page.WaitForURL("**/job/*"))
	heading, err := page.Locator("h1").TextContent()
	require.NoError(t, err)
	assert.Equal(t, title, heading)
}

func TestPost_MissingFieldKeepsInput(t *testing.T) {
	page := newPage(t)
	login(t, page, testUser, testPassword)
	require.NoError(t, page.WaitForURL("**/admin/post"))

	fillPostingForm(t, page, "Incomplete Posting")
	require.NoError(t, page.Locator("[name='company']").Fill(""))
	// skip browser-side required check to reach the server validation
	_, err := page.Evaluate("() => document.querySelector('.form-card form').noValidate = true")
	require.NoError(t, err)
	require.NoError(t, page.Locator(".form-card button[type='submit']").Click())

	waitVisible(t, page.Locator(".flash-error"))
	text, err := page.Locator(".flash-error").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "missing required fields: company")

	value, err := page.Locator("[name='title']").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Incomplete Posting", value)
}
