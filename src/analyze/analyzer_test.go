package analyze

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/contracts"
	"diaglog/src/patterns"
	"diaglog/src/reference"
)

func newTestClassifier(t *testing.T) (*patterns.Extractor, *Classifier) {
	t.Helper()
	refs := reference.MustDefault()
	return patterns.NewExtractor(refs), NewClassifier(refs)
}

func toRecords(lines []string) []contracts.LogRecord {
	records := make([]contracts.LogRecord, len(lines))
	for i, line := range lines {
		records[i] = contracts.LogRecord{LineNumber: i + 1, RawText: line}
	}
	return records
}

func kinds(assignments []contracts.BucketAssignment) []contracts.BucketKind {
	var out []contracts.BucketKind
	for _, a := range assignments {
		out = append(out, a.Kind)
	}
	return out
}

func TestClassify(t *testing.T) {
	ex, c := newTestClassifier(t)

	tests := []struct {
		line     string
		expected []contracts.BucketKind
	}{
		{"System.NullReferenceException: Object reference not set to an instance of an object",
			[]contracts.BucketKind{contracts.BucketException}},
		{`   at Runner.Execute() in C:\src\Runner.cs:line 42`, nil},
		{"XML schema validation failed for SessionResult.xml",
			[]contracts.BucketKind{contracts.BucketXMLValidation, contracts.BucketGenericError}},
		{"Rx 7E8: 03 7F 31 78",
			[]contracts.BucketKind{contracts.BucketNRCNegative}},
		{"Rx 7E8: 03 7F 27 35 invalidKey",
			[]contracts.BucketKind{contracts.BucketNRCNegative, contracts.BucketCritical}},
		{"ERROR: NRC 0x31 requestOutOfRange",
			[]contracts.BucketKind{contracts.BucketNRCNegative, contracts.BucketGenericError}},
		{"Module 7E0 did not respond",
			[]contracts.BucketKind{contracts.BucketFailure}},
		{"Programming PCM failed at block 12",
			[]contracts.BucketKind{contracts.BucketFailure, contracts.BucketCritical}},
		{"FATAL: ECU bricked",
			[]contracts.BucketKind{contracts.BucketFailure, contracts.BucketCritical}},
		{"Critical failure in PCM supply",
			[]contracts.BucketKind{contracts.BucketFailure, contracts.BucketCritical}},
		{"Checking critical DTCs: none stored", nil},
		{"Self test completed with 0 errors",
			[]contracts.BucketKind{contracts.BucketSuccess}},
		{"Validation passed, no errors",
			[]contracts.BucketKind{contracts.BucketSuccess}},
		{"Session completed successfully",
			[]contracts.BucketKind{contracts.BucketSuccess}},
		{"WARNING: battery voltage 11.8V",
			[]contracts.BucketKind{contracts.BucketWarning}},
		{"ODX catalog not found for 7D0",
			[]contracts.BucketKind{contracts.BucketMissingCatalog}},
		{"Tester connected", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			rec := contracts.LogRecord{LineNumber: 1, RawText: tt.line}
			got := c.Classify(rec, ex.Extract(rec))
			assert.Equal(t, tt.expected, kinds(got))
		})
	}
}

func TestClassify_AtMostOnePrimary(t *testing.T) {
	ex, c := newTestClassifier(t)

	rec := contracts.LogRecord{LineNumber: 1, RawText: "ERROR: NRC 0x78 then NRC 0x22 from 7E0, programming failed"}
	got := c.Classify(rec, ex.Extract(rec))

	primaries := 0
	for _, a := range got {
		if a.Primary {
			primaries++
		}
	}
	require.Equal(t, 1, primaries)

	// The non-benign code wins over the pending one.
	require.NotNil(t, got[0].NRC)
	assert.Equal(t, "22", got[0].NRC.Code)
	assert.Equal(t, "NRC 0x22", got[0].Signature)
	assert.True(t, got[0].Programming)
}

func TestClassify_BenignNRCNeverEscalates(t *testing.T) {
	ex, c := newTestClassifier(t)

	rec := contracts.LogRecord{LineNumber: 1, RawText: "Flashing PCM: TransferData NRC 0x78 responsePending, abort timer reset"}
	got := c.Classify(rec, ex.Extract(rec))

	assert.Equal(t, []contracts.BucketKind{contracts.BucketNRCNegative}, kinds(got))
	require.NotNil(t, got[0].NRC)
	assert.True(t, got[0].NRC.Benign)
	assert.Equal(t, "requestCorrectlyReceivedResponsePending", got[0].NRC.Name)
}

func TestClassify_UndocumentedNRC(t *testing.T) {
	ex, c := newTestClassifier(t)

	rec := contracts.LogRecord{LineNumber: 1, RawText: "NRC 0xF5 from 7E0"}
	got := c.Classify(rec, ex.Extract(rec))

	require.Len(t, got, 1)
	assert.Equal(t, "unknown", got[0].NRC.Name)
	assert.Contains(t, got[0].NRC.Meaning, "vehicle-manufacturer specific")
	assert.False(t, got[0].NRC.Benign)
}

func TestBucketize_StackTracesCollapse(t *testing.T) {
	ex, c := newTestClassifier(t)

	var lines []string
	for i := 0; i < 23; i++ {
		lines = append(lines,
			fmt.Sprintf("2024-05-21 10:%02d:01 ERROR System.InvalidOperationException: Session@%08x state #%d rejected at 0x%X",
				i, 0x1b6d3586+i*977, 100+i*7, 0x4000+i*16),
			fmt.Sprintf(`   at Fdrs.Session.Run() in C:\src\Session.cs:line %d`, 40+i),
			fmt.Sprintf(`   at Fdrs.Program.Main() in C:\src\Program.cs:line %d`, 10+i),
		)
	}

	set := Bucketize(toRecords(lines), ex, c, MaxSamples)

	var exceptions []contracts.ErrorBucket
	for _, b := range set.Buckets() {
		if b.Kind == contracts.BucketException {
			exceptions = append(exceptions, b)
		}
	}

	require.Len(t, exceptions, 1)
	b := exceptions[0]
	assert.Equal(t, 23, b.Count)
	assert.Len(t, b.Samples, MaxSamples)
	assert.Equal(t, 1, b.FirstLine)
	assert.Equal(t, 67, b.LastLine)
	assert.Equal(t, 69, set.Stats().Records)
	assert.Equal(t, 23, set.Stats().Matched)
}

func TestBucketize_CountSum(t *testing.T) {
	ex, c := newTestClassifier(t)

	lines := []string{
		"2024-05-21 10:00:00 FDRS 45.3.1 session start",
		"Tx 7E0: 02 10 03",
		"Rx 7E8: 03 7F 10 78",
		"Rx 7E8: 06 50 03 00 32 01 F4 positive response",
		"System.TimeoutException: read timed out",
		"   at Fdrs.Bus.Read() in C:\\src\\Bus.cs:line 9",
		"XML schema validation failed for Result.xml",
		"Module 726 did not respond",
		"WARNING: battery voltage low",
		"Rx 760: 03 7F 22 31",
		"Rx 7E8: 03 7F 31 78",
		"ODX catalog not found for 7D0",
		"Session completed successfully",
	}

	set := Bucketize(toRecords(lines), ex, c, MaxSamples)
	stats := set.Stats()

	sum := 0
	for _, b := range set.Buckets() {
		if b.Kind.IsPrimary() {
			sum += b.Count
		}
	}

	assert.Equal(t, len(lines), stats.Records)
	assert.Equal(t, stats.Matched, sum+stats.Success)
	assert.Equal(t, 2, stats.Success)
}

func TestBucketize_Deterministic(t *testing.T) {
	ex, c := newTestClassifier(t)

	lines := []string{
		"Rx 7E8: 03 7F 31 78",
		"Module 726 did not respond",
		"Rx 7E8: 03 7F 31 78",
		"Programming PCM failed at block 12",
		"Rx 760: 03 7F 22 31",
	}

	first := Bucketize(toRecords(lines), ex, c, MaxSamples)
	second := Bucketize(toRecords(lines), ex, c, MaxSamples)

	assert.Equal(t, first.Buckets(), second.Buckets())
	assert.Equal(t, first.Stats(), second.Stats())
}

func TestBucketSet_SamplesBounded(t *testing.T) {
	ex, c := newTestClassifier(t)

	lines := []string{
		"Tx 7E0: 04 31 01 FF 00",
		"Rx 7E8: 03 7F 31 78",
		"Rx 7E8: 03 7F 31 78",
		"Rx 7E8: 03 7F 31 78",
	}

	set := Bucketize(toRecords(lines), ex, c, 2)
	require.Equal(t, 1, set.Len())

	b := set.Buckets()[0]
	assert.Equal(t, contracts.BucketNRCNegative, b.Kind)
	assert.Equal(t, "NRC 0x78", b.Signature)
	assert.Equal(t, 3, b.Count)
	assert.Len(t, b.Samples, 2)
	assert.Equal(t, 2, b.FirstLine)
	assert.Equal(t, 4, b.LastLine)
	assert.Equal(t, []string{"7E0"}, b.Modules)
	assert.True(t, b.IsBenign())
	assert.Equal(t, BucketID(contracts.BucketNRCNegative, "NRC 0x78"), b.ID)
}

func TestBucketSet_BucketsAreCopies(t *testing.T) {
	ex, c := newTestClassifier(t)

	set := Bucketize(toRecords([]string{"Rx 7E8: 03 7F 31 78"}), ex, c, MaxSamples)
	got := set.Buckets()
	got[0].Count = 99
	got[0].Modules[0] = "XXX"

	again := set.Buckets()
	assert.Equal(t, 1, again[0].Count)
	assert.Equal(t, "7E0", again[0].Modules[0])
}

func TestBucketSet_ModulesSorted(t *testing.T) {
	ex, c := newTestClassifier(t)

	set := Bucketize(toRecords([]string{"Module 7E0 and Module 726 did not respond"}), ex, c, MaxSamples)
	require.Equal(t, 1, set.Len())
	assert.Equal(t, []string{"726", "7E0"}, set.Buckets()[0].Modules)
}

func TestBucketID(t *testing.T) {
	a := BucketID(contracts.BucketNRCNegative, "NRC 0x78")
	b := BucketID(contracts.BucketNRCNegative, "NRC 0x78")
	c := BucketID(contracts.BucketCritical, "NRC 0x78")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, `^nrc_negative-[0-9a-f]{12}$`, a)
}

func TestCalculateMessageHash(t *testing.T) {
	hash1 := CalculateMessageHash("NRC 0x78")
	hash2 := CalculateMessageHash("NRC 0x78")
	hash3 := CalculateMessageHash("NRC 0x31")

	if hash1 != hash2 {
		t.Error("Same message should produce same hash")
	}
	if hash1 == hash3 {
		t.Error("Different messages should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("Expected SHA256 hash length 64, got %d", len(hash1))
	}
}
