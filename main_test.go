package main

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanofslack/ddns-agent/internal/apperr"
	"github.com/evanofslack/ddns-agent/internal/config"
	"github.com/evanofslack/ddns-agent/internal/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"run", "history", "setup"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, config.DefaultPath, flag.DefValue)
}

func TestRunAgentMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure.toml")

	err := runAgent(&rootOptions{configPath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.FileExists(t, path)

	// the generated default has no credentials and is refused
	err = runAgent(&rootOptions{configPath: path})
	assert.ErrorIs(t, err, apperr.ErrFormat)
}

func TestRunAgentZeroInterval(t *testing.T) {
	path := writeConfig(t, "https://dns.example.net", 0)
	err := runAgent(&rootOptions{configPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update interval")
}

func TestRunAgentRefusesNonARecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"msg":{"id":42,"content":{"content":"example.com","ttl":600,"type":"CNAME","name":"home"}}}`)
	}))
	defer srv.Close()

	err := runAgent(&rootOptions{configPath: writeConfig(t, srv.URL, 5)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrRecordTypeMismatch)
}

func TestRunAgentInitialFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := runAgent(&rootOptions{configPath: writeConfig(t, srv.URL, 5)})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrNetwork)
}

func TestRunAgentStartupFailureLeavesMetricsAddrFree(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	path := writeConfig(t, srv.URL, 5)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.MetricsAddr = addr
	require.NoError(t, config.Save(path, *cfg))

	err = runAgent(&rootOptions{configPath: path})
	require.ErrorIs(t, err, apperr.ErrNetwork)

	ln, err = net.Listen("tcp", addr)
	require.NoError(t, err)
	ln.Close()
}

func TestHistoryDoesNotWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure.toml")

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"history", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIO)
	assert.NoFileExists(t, path)
}

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure.toml")
	var out bytes.Buffer

	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader("s3cret\n4242\nhttps://dns.example.net/api\n\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"setup", "--config", path})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "config written to")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.Equal(t, uint64(4242), cfg.RecordID)
	assert.Equal(t, uint64(5), cfg.UpdateInterval)
	assert.NoError(t, cfg.Validate())

	// a second run does not clobber the file
	cmd = newRootCommand()
	cmd.SetIn(strings.NewReader("other\n1\nhttps://x\n\n"))
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"setup", "--config", path})
	assert.Error(t, cmd.Execute())
}

func TestSetupRejectsBadRecordID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configure.toml")

	cmd := newRootCommand()
	cmd.SetIn(strings.NewReader("s3cret\nhome\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"setup", "--config", path})
	assert.Error(t, cmd.Execute())
	assert.NoFileExists(t, path)
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printHistory(&buf, nil))
	assert.Equal(t, "no updates recorded\n", buf.String())

	buf.Reset()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, printHistory(&buf, []history.Entry{
		{At: at, RecordID: "42", Name: "home", OldIP: "203.0.113.7", NewIP: "198.51.100.23"},
	}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"TIME", "RECORD", "NAME", "OLD", "IP", "NEW", "IP"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"2024-05-01", "12:00:00", "42", "home", "203.0.113.7", "198.51.100.23"}, strings.Fields(lines[1]))
}

func writeConfig(t *testing.T, apiURL string, interval uint64) string {
	t.Helper()
	cfg := config.Default()
	cfg.Token = "s3cret"
	cfg.RecordID = 42
	cfg.APIURL = apiURL
	cfg.UpdateInterval = interval
	cfg.MetricsAddr = ""

	path := filepath.Join(t.TempDir(), "configure.toml")
	require.NoError(t, config.Save(path, cfg))
	_, err := os.Stat(path)
	require.NoError(t, err)
	return path
}
