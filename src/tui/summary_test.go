package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
)

func TestRenderReport(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	r := testReport(
		testBucket("fail", contracts.BucketFailure, 2, "Module did not respond"),
		testBucket("warn", contracts.BucketWarning, 9, "WARNING: battery voltage low"),
	)
	r.Metadata.ToolVersion = "45.3.1"
	r.Metadata.StartTime = &start
	r.Metadata.EndTime = &end
	r.Metadata.Ambiguities = []diagerr.AmbiguousMetadataWarning{{Field: "vin", Values: []string{"A", "B"}}}
	r.Dependencies = map[string][]string{"726": {"716"}}
	r.Conclusion.Recommendations = []string{"Check the gateway module"}

	out := stripAnsi(RenderReport(r, 100))

	for _, want := range []string{
		"Diagnostic report: session.log",
		"Outcome:    FAILURE",
		"VIN:        1FTFW1RG3NFA95916",
		"Tool:       45.3.1",
		"Duration:   5m0s",
		"ambiguous vin: A, B",
		"HIGH",
		"BCM (726) did not respond",
		"- Check the gateway module",
		"T1 │     2 │ FAIL │ Module did not respond",
		"T3 │     9 │ WARN │ WARNING: battery voltage low",
		"BCM (726)",
		"726 has no traffic through gateway 716",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	assertFits(t, out, 100)
}

func TestRenderReport_PartialAndEmpty(t *testing.T) {
	r := testReport()
	r.Partial = true
	r.Modules = contracts.ModuleTable{}

	out := stripAnsi(RenderReport(r, 60))
	if !strings.Contains(out, "FAILURE (partial analysis)") {
		t.Errorf("expected partial marker:\n%s", out)
	}
	if strings.Contains(out, "Buckets:") || strings.Contains(out, "Modules:") {
		t.Errorf("empty sections should be omitted:\n%s", out)
	}
}

func TestRenderReport_LimitsBuckets(t *testing.T) {
	var buckets []contracts.ErrorBucket
	for i := 0; i < MaxSummaryBuckets+5; i++ {
		buckets = append(buckets, testBucket(fmt.Sprintf("b%02d", i), contracts.BucketGenericError, 1, fmt.Sprintf("error %d", i)))
	}

	out := stripAnsi(RenderReport(testReport(buckets...), 80))
	if !strings.Contains(out, "... 5 more") {
		t.Errorf("expected truncation marker:\n%s", out)
	}
	assertFits(t, out, 80)
}

func TestRenderConclusion(t *testing.T) {
	c := contracts.Conclusion{
		RootCause:       strings.Repeat("gateway unreachable ", 10),
		Category:        "missing-dependency",
		Confidence:      0.8,
		RiskLevel:       contracts.RiskCritical,
		Recommendations: []string{"Verify gateway power"},
	}

	out := stripAnsi(RenderConclusion(c, 40, DefaultStyles()))
	if !strings.Contains(out, "Confidence: 0.80") {
		t.Errorf("missing confidence:\n%s", out)
	}
	for i, line := range strings.Split(out, "\n")[1:] {
		if w := VisualWidth(line); w > 40 {
			t.Errorf("line %d width %d exceeds 40", i+1, w)
		}
	}
}
