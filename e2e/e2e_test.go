//go:build e2e

// Package e2e provides end-to-end browser tests for the job board web UI.
//
// Test organization:
// - e2e_test.go: TestMain, shared helpers, constants, listing and detail tests
// - auth_test.go: login gate tests (login, logout, guarded pages)
// - post_test.go: posting form tests
package e2e

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	baseURL       = "http://localhost:18090"
	testUser      = "admin"
	testPassword  = "admin123" //nolint:gosec // test password for e2e tests
	binaryPath    = "/tmp/jobboard-e2e"
	serverAddress = "127.0.0.1:18090"
)

var (
	pw        *playwright.Playwright
	serverCmd *exec.Cmd
)

func TestMain(m *testing.M) {
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	dataDir, err := os.MkdirTemp("", "jobboard-e2e")
	if err != nil {
		fmt.Printf("failed to create temp dir: %v\n", err)
		return 1
	}
	defer os.RemoveAll(dataDir)

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		fmt.Printf("failed to hash password: %v\n", err)
		return 1
	}

	// build test binary
	ctx := context.Background()
	build := exec.CommandContext(ctx, "go", "build", "-o", binaryPath, "./app")
	build.Dir = ".."
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		fmt.Printf("failed to build: %v\n", err)
		return 1
	}

	serverCmd = exec.CommandContext(ctx, binaryPath,
		"--listen="+serverAddress,
		"--db="+filepath.Join(dataDir, "jobs.db"),
		"--auth.user="+testUser,
		"--auth.password-hash="+string(hash),
		"--auth.rate=100",
	)
	serverCmd.Stdout = os.Stdout
	serverCmd.Stderr = os.Stderr
	if err := serverCmd.Start(); err != nil {
		fmt.Printf("failed to start server: %v\n", err)
		return 1
	}
	defer func() { _ = serverCmd.Process.Kill() }()

	if err := waitForServer(baseURL+"/health", 30*time.Second); err != nil {
		fmt.Printf("server not ready: %v\n", err)
		return 1
	}

	if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
		fmt.Printf("failed to install playwright: %v\n", err)
		return 1
	}

	pw, err = playwright.Run()
	if err != nil {
		fmt.Printf("failed to start playwright: %v\n", err)
		return 1
	}
	defer func() { _ = pw.Stop() }()

	return m.Run()
}

func waitForServer(url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not ready after %v", timeout)
		default:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody) // #nosec G107 - test url
			if err != nil {
				time.Sleep(100 * time.Millisecond)
				continue
			}
			resp, err := client.Do(req)
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func newPage(t *testing.T) playwright.Page {
	t.Helper()
	headless := os.Getenv("E2E_HEADLESS") != "false"
	slowMo := 0.0
	if !headless {
		slowMo = 50 // 50ms slowdown for UI mode
	}
	brow, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		SlowMo:   playwright.Float(slowMo),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = brow.Close() })

	// isolated context, no cookies shared between tests
	ctx, err := brow.NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close() })

	page, err := ctx.NewPage()
	require.NoError(t, err)
	return page
}

func waitVisible(t *testing.T, loc playwright.Locator) {
	t.Helper()
	err := loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	require.NoError(t, err)
}

// openBoard navigates to the listing and waits for it to render
func openBoard(t *testing.T, page playwright.Page, query string) {
	t.Helper()
	_, err := page.Goto(baseURL + "/" + query)
	require.NoError(t, err)
	waitVisible(t, page.Locator(".site-header"))
}

// --- listing tests ---

func TestBoard_PageLoads(t *testing.T) {
	page := newPage(t)
	openBoard(t, page, "")

	title, err := page.Title()
	require.NoError(t, err)
	assert.Equal(t, "Job Board", title)

	count, err := page.Locator(".job-card").Count()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 12, "seeded postings shown")

	visible, err := page.Locator("a[href='/login']").IsVisible()
	require.NoError(t, err)
	assert.True(t, visible, "login link should be visible")
}

func TestBoard_SearchByKeyword(t *testing.T) {
	page := newPage(t)
	openBoard(t, page, "")

	require.NoError(t, page.Locator("input[name='q']").Fill("python"))
	require.NoError(t, page.Locator(".search button[type='submit']").Click())
	require.NoError(t, page.WaitForURL("**/?q=python*"))

	text, err := page.Locator("main").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Python Developer")
	assert.NotContains(t, text, "DevOps Engineer")

	value, err := page.Locator("input[name='q']").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "python", value, "query echoed back")
}

func TestBoard_FilterByType(t *testing.T) {
	page := newPage(t)
	openBoard(t, page, "")

	_, err := page.Locator(".search select[name='type']").SelectOption(playwright.SelectOptionValues{
		Values: playwright.StringSlice("Contract"),
	})
	require.NoError(t, err)
	require.NoError(t, page.Locator(".search button[type='submit']").Click())
	require.NoError(t, page.WaitForURL("**type=Contract*"))

	badges, err := page.Locator(".job-card .badge").AllTextContents()
	require.NoError(t, err)
	require.NotEmpty(t, badges)
	for _, b := range badges {
		assert.Equal(t, "Contract", b)
	}
}

func TestBoard_NoResults(t *testing.T) {
	page := newPage(t)
	openBoard(t, page, "?q=nonexistentjob12345")

	count, err := page.Locator(".job-card").Count()
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	waitVisible(t, page.Locator(".empty"))
}

func TestBoard_OpenDetail(t *testing.T) {
	page := newPage(t)
	openBoard(t, page, "?q=Golang")

	require.NoError(t, page.Locator(".job-card h2 a").First().Click())
	require.NoError(t, page.WaitForURL("**/job/*"))

	heading, err := page.Locator("h1").TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Golang Engineer", heading)

	text, err := page.Locator(".job-detail").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "FastTrack Systems")
	assert.Contains(t, text, "How to Apply")
}

func TestBoard_MissingJob(t *testing.T) {
	page := newPage(t)
	resp, err := page.Goto(baseURL + "/job/99999")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status())
}
