package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/umputun/jobboard/app/web/persistence"
)

func Test_makeNotifier(t *testing.T) {
	defer func() { opts.Notify.To, opts.Notify.Webhooks, opts.Notify.From = nil, nil, "" }()

	opts.Notify.To, opts.Notify.Webhooks = nil, nil
	assert.Nil(t, makeNotifier())

	opts.Notify.To = []string{"hr@example.com"}
	assert.NotNil(t, makeNotifier())

	opts.Notify.To = nil
	opts.Notify.Webhooks = []string{"https://hooks.example.com/x"}
	assert.NotNil(t, makeNotifier())
}

func Test_setupLogsWithLogsDisabled(t *testing.T) {
	opts.Log.Enabled = false
	assert.Equal(t, os.Stdout, setupLogs())
}

func Test_setupLogsToFile(t *testing.T) {
	defer func() { opts.Log.Enabled = false; setupLogs() }()
	logFile := filepath.Join(t.TempDir(), "jobboard.log")

	opts.Log.Enabled = true
	opts.Log.Filename = logFile
	opts.Log.MaxSize = 100
	opts.Log.MaxBackups = 7
	opts.Log.MaxAge = 0
	opts.Log.EnabledCompress = false

	out := setupLogs()
	assert.IsType(t, &lumberjack.Logger{}, out)

	logger := out.(*lumberjack.Logger)
	assert.Equal(t, logFile, logger.Filename)
	assert.Equal(t, 100, logger.MaxSize)
	assert.Equal(t, 7, logger.MaxBackups)
	assert.Equal(t, 0, logger.MaxAge)
	assert.False(t, logger.Compress)
	require.NoError(t, logger.Close())
}

func Test_validateBaseURL(t *testing.T) {
	tests := []struct{ name, input, want string }{
		{"empty string", "", ""},
		{"root path", "/", ""},
		{"path without trailing slash", "/jobs", "/jobs"},
		{"path with trailing slash", "/jobs/", "/jobs"},
		{"multi-segment path", "/app/jobs", "/app/jobs"},
		{"multi-segment with trailing slash", "/app/jobs/", "/app/jobs"},
		{"missing leading slash", "jobs", "/jobs"},
		{"spaces", "  /jobs  ", "/jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validateBaseURL(tt.input))
		})
	}
}

func Test_loadSeed(t *testing.T) {
	defer func() { opts.Seed = "" }()

	opts.Seed = ""
	postings, err := loadSeed()
	require.NoError(t, err)
	assert.Len(t, postings, 12)

	seedFile := filepath.Join(t.TempDir(), "seed.yml")
	content := `postings:
  - title: Night Watch
    company: Castle Black
    location: The Wall
    job_type: Contract
    description: Guard the realm
    requirements: Warm clothes
    salary_range: food and shelter
    how_to_apply: take the oath
`
	require.NoError(t, os.WriteFile(seedFile, []byte(content), 0o600))
	opts.Seed = seedFile
	postings, err = loadSeed()
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "Night Watch", postings[0].Title)

	opts.Seed = filepath.Join(t.TempDir(), "missing.yml")
	_, err = loadSeed()
	require.Error(t, err)
}

func Test_run(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "nested", "data", "jobs.db")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	opts.DB = dbFile
	opts.Listen = addr
	opts.NoSeed = false
	opts.Seed = ""
	opts.BaseURL = "/board/"
	opts.Auth.User = "admin"
	opts.Auth.Sweep = "@every 10m"
	opts.Auth.TTL = time.Hour
	opts.Auth.Rate = 5
	opts.Notify.Timeout = time.Second
	defer func() { opts.BaseURL = "" }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/board/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/board/?q=golang")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "Golang Engineer"))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}

	// samples persisted
	store, err := persistence.NewSQLiteStore(dbFile)
	require.NoError(t, err)
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, count)
	require.NoError(t, store.Close())
}

func Test_runFailsOnBadSeed(t *testing.T) {
	seedFile := filepath.Join(t.TempDir(), "seed.yml")
	require.NoError(t, os.WriteFile(seedFile, []byte("postings: []\n"), 0o600))

	opts.DB = filepath.Join(t.TempDir(), "jobs.db")
	opts.Seed = seedFile
	opts.NoSeed = false
	defer func() { opts.Seed = "" }()

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no postings defined")
}
