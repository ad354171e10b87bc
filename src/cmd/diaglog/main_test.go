package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/config"
	"diaglog/src/contracts"
	"diaglog/src/digest"
	"diaglog/src/hexnrc"
	"diaglog/src/pipeline"
)

const failedSession = `2026-03-01 10:00:00 FDRS version 45.3.1 starting
2026-03-01 10:00:01 VIN: 1FTFW1RG3NFA95916
2026-03-01 10:00:02 Tx 726: 02 10 03
2026-03-01 10:00:05 Module 726 did not respond
2026-03-01 10:00:06 Session failed
`

const successSession = `2026-03-01 10:00:00 FDRS version 45.3.1 starting
2026-03-01 10:00:01 Rx 7E8: 03 7F 31 78
2026-03-01 10:05:00 Programming session completed successfully
`

func writeLog(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestAnalyze_TextReport(t *testing.T) {
	out, err := execute(t, "analyze", writeLog(t, "bcm.log", failedSession))
	require.NoError(t, err)

	assert.Contains(t, out, "Diagnostic report: bcm.log")
	assert.Contains(t, out, "1FTFW1RG3NFA95916")
	assert.Contains(t, out, "726 has no traffic through gateway 716")
}

func TestAnalyze_JSON(t *testing.T) {
	out, err := execute(t, "analyze", "--json", writeLog(t, "bcm.log", failedSession))
	require.NoError(t, err)

	var report contracts.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "bcm.log", report.Source)
	assert.Equal(t, contracts.OutcomeFailure, report.Metadata.Outcome)
	assert.Equal(t, map[string][]string{"726": {"716"}}, report.Dependencies)
	assert.NotEmpty(t, report.RequestID)
}

func TestAnalyze_DigestWithinBudget(t *testing.T) {
	out, err := execute(t, "analyze", "--digest", "--max-chars", "200", writeLog(t, "bcm.log", failedSession))
	require.NoError(t, err)

	out = strings.TrimSuffix(out, "\n")
	assert.True(t, strings.HasPrefix(out, "DIAGNOSTIC DIGEST source=bcm.log"), out)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 200)
}

func TestAnalyze_Many(t *testing.T) {
	a := writeLog(t, "bcm.log", failedSession)
	b := writeLog(t, "pcm.log", successSession)
	missing := filepath.Join(t.TempDir(), "missing.log")

	out, err := execute(t, "analyze", "--json", a, b, missing)
	require.NoError(t, err)

	var multi pipeline.MultiReport
	require.NoError(t, json.Unmarshal([]byte(out), &multi))
	require.Len(t, multi.Reports, 2)
	assert.Equal(t, "bcm.log", multi.Reports[0].Source)
	assert.Equal(t, "pcm.log", multi.Reports[1].Source)
	require.Len(t, multi.Errors, 1)
	assert.Equal(t, 2, multi.Errors[0].Index)
	assert.NotEmpty(t, multi.Conclusion.RootCause)
}

func TestAnalyze_ManyText(t *testing.T) {
	out, err := execute(t, "analyze", writeLog(t, "bcm.log", failedSession), writeLog(t, "pcm.log", successSession))
	require.NoError(t, err)
	assert.Contains(t, out, "Merged conclusion (2 logs)")
}

func TestAnalyze_Errors(t *testing.T) {
	malformed := writeLog(t, "broken.xml", "<Session>\n  <Step>Programming failed\n</Session>\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"analyze"}, "requires at least 1 arg"},
		{"bad format", []string{"analyze", "--format", "pdf", malformed}, "pdf"},
		{"malformed xml", []string{"analyze", "--format", "xml", malformed}, "--format text"},
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "nope.log")}, "nope.log"},
		{"exclusive outputs", []string{"analyze", "--json", "--digest", malformed}, "none of the others"},
		{"all inputs fail", []string{"analyze", malformed + ".a", malformed + ".b"}, "none of the 2 logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyze_MalformedXMLAsText(t *testing.T) {
	malformed := writeLog(t, "broken.xml", "<Session>\n  <Step>Programming failed\n</Session>\n")

	out, err := execute(t, "analyze", "--format", "text", "--json", malformed)
	require.NoError(t, err)

	var report contracts.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "text", report.Format)
}

func TestDecode(t *testing.T) {
	out, err := execute(t, "decode", "7E8", "03", "7F", "31", "78")
	require.NoError(t, err)
	assert.Contains(t, out, "FIELD")
	assert.Contains(t, out, hexnrc.BestEffortNote)

	_, err = execute(t, "decode", "zz")
	assert.Error(t, err)
}

func TestNRC(t *testing.T) {
	out, err := execute(t, "nrc", "0x78")
	require.NoError(t, err)
	assert.Contains(t, out, "NRC 0x78 requestCorrectlyReceivedResponsePending")
	assert.Contains(t, out, "benign")

	out, err = execute(t, "nrc", "7F", "31", "FA")
	require.NoError(t, err)
	assert.Contains(t, out, "not in the reference tables")

	_, err = execute(t, "nrc", "01", "02")
	assert.Error(t, err)
}

func TestSubmit_LocalPipeline(t *testing.T) {
	out, err := execute(t, "submit", "--json", writeLog(t, "bcm.log", failedSession))
	require.NoError(t, err)

	var report contracts.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "bcm.log", report.Source)
	assert.Equal(t, map[string][]string{"726": {"716"}}, report.Dependencies)
}

func TestBudgetFor(t *testing.T) {
	cfg := config.DigestConfig{MaxChars: 4000, MaxTokens: 1000}

	assert.Equal(t, digest.Budget{MaxChars: 4000, MaxTokens: 1000}, budgetFor(cfg, 0, 0))
	assert.Equal(t, digest.Budget{MaxChars: 500, MaxTokens: 1000}, budgetFor(cfg, 500, 0))
	assert.Equal(t, digest.Budget{MaxChars: 4000, MaxTokens: 50}, budgetFor(cfg, 0, 50))
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "stdin", sourceName("-"))
	assert.Equal(t, "session.log", sourceName("/var/log/fdrs/session.log"))
}

func TestNewMCPServer(t *testing.T) {
	cfg := config.Default()
	cfg.Reference = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newMCPServer(cfg, nil)
	assert.Error(t, err)
}
