package modules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diaglog/src/contracts"
	"diaglog/src/patterns"
	"diaglog/src/reference"
)

// line pairs a line number with its text so tests can control distances.
type line struct {
	n    int
	text string
}

func feed(t *testing.T, cfg Config, lines []line) *Table {
	t.Helper()
	refs := reference.MustDefault()
	ex := patterns.NewExtractor(refs)
	table := NewTable(refs, cfg)
	for _, l := range lines {
		rec := contracts.LogRecord{LineNumber: l.n, RawText: l.text}
		table.Update(rec, ex.Extract(rec))
	}
	return table
}

func TestInferMissingDependencies_GatewayNeverResponded(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Tx 7E0: 02 10 03"},
		{2, "Module 7E0 did not respond"},
		{3, "Rx 7E8: 03 7F 10 22"},
	})

	deps := InferMissingDependencies(table)
	assert.Equal(t, map[string][]string{"7E0": {"716"}}, deps)

	mt := table.Finalize()
	require.Len(t, mt.DependencyFlags, 1)
	flag := mt.DependencyFlags[0]
	assert.Equal(t, "7E0", flag.Module)
	assert.Equal(t, "716", flag.Gateway)
	assert.Equal(t, contracts.RiskHigh, flag.Severity)
	assert.Equal(t, 2, flag.Line)
	assert.Equal(t, []string{"716"}, mt.Modules["7E0"].InferredMissingDependencies)
}

func TestInferMissingDependencies_GatewaySucceededFirst(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Rx 716: 02 50 03 positive response"},
		{2, "Module 7E0 did not respond"},
	})

	assert.Empty(t, InferMissingDependencies(table))
	gw, ok := table.Module("716")
	require.True(t, ok)
	assert.True(t, gw.Gateway)
	assert.Equal(t, 1, gw.Successes)
}

func TestInferMissingDependencies_RoutedThroughGateway(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Tx 726 via 716 positive response"},
		{2, "Module 7E0 did not respond"},
	})

	bcm, ok := table.Module("726")
	require.True(t, ok)
	require.Len(t, bcm.Communications, 1)
	assert.Equal(t, "716", bcm.Communications[0].Peer)
	assert.Empty(t, InferMissingDependencies(table))
}

func TestInferMissingDependencies_GatewaySuccessAfterFailure(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Module 7E0 did not respond"},
		{2, "Rx 716: 02 50 03 positive response"},
	})

	assert.Equal(t, map[string][]string{"7E0": {"716"}}, InferMissingDependencies(table))
}

func TestInferMissingDependencies_ConfiguredGateways(t *testing.T) {
	table := feed(t, Config{Gateways: []string{"0x726"}}, []line{
		{1, "Module 720 did not respond"},
		{2, "Module 7E0 failed"},
	})

	deps := InferMissingDependencies(table)
	assert.Equal(t, map[string][]string{"720": {"726"}, "7E0": {"726"}}, deps)
	assert.Equal(t, []string{"726"}, table.Gateways())

	mt := table.Finalize()
	severities := map[string]contracts.RiskLevel{}
	for _, f := range mt.DependencyFlags {
		severities[f.Module] = f.Severity
	}
	assert.Equal(t, contracts.RiskMedium, severities["720"], "IPC and BCM are both standard")
	assert.Equal(t, contracts.RiskHigh, severities["7E0"], "PCM is critical")
}

func TestInferMissingDependencies_IsPure(t *testing.T) {
	table := feed(t, Config{}, []line{{1, "Module 7E0 did not respond"}})

	first := InferMissingDependencies(table)
	second := InferMissingDependencies(table)
	assert.Equal(t, first, second)

	m, _ := table.Module("7E0")
	assert.Nil(t, m.InferredMissingDependencies)
}

func TestIntermittentTimeoutsFold(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Rx 7E8: 06 50 03 00 32 01 F4 positive response"},
		{10, "Module 7E0 did not respond"},
		{20, "Module 7E0 did not respond"},
		{30, "Module 7E0 did not respond"},
	})

	assert.Empty(t, InferMissingDependencies(table), "intermittent timeouts are not a missing dependency")

	mt := table.Finalize()
	sig := mt.Modules["7E0"].Intermittent
	require.NotNil(t, sig)
	assert.Equal(t, contracts.IntermittentSignal{Timeouts: 3, FirstLine: 10, LastLine: 30}, *sig)
	assert.Empty(t, mt.DependencyFlags)
}

func TestIntermittentOutsideWindow(t *testing.T) {
	table := feed(t, Config{IntermittentWindow: 15}, []line{
		{10, "Module 7E0 did not respond"},
		{20, "Module 7E0 did not respond"},
		{30, "Module 7E0 did not respond"},
	})

	mt := table.Finalize()
	assert.Nil(t, mt.Modules["7E0"].Intermittent)
	assert.Len(t, mt.DependencyFlags, 1)
}

func TestCommunicationOutcomes(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Rx 7E8: 03 7F 31 78"},
		{2, "Rx 7E8: 03 7F 31 22"},
		{3, "Tx 7E0 positive response"},
		{4, "Tx 7E0 timed out"},
		{5, "Tx 7E0: 02 10 03"},
		{6, "Erase memory 7E0 failed"},
	})

	m, ok := table.Module("7E0")
	require.True(t, ok)

	var outcomes []contracts.CommOutcome
	for _, c := range m.Communications {
		outcomes = append(outcomes, c.Outcome)
	}
	assert.Equal(t, []contracts.CommOutcome{
		contracts.CommSuccess, // pending response means the module is alive
		contracts.CommFailure,
		contracts.CommSuccess,
		contracts.CommTimeout,
		contracts.CommFailure,
	}, outcomes)
	assert.Equal(t, 2, m.Successes)
	assert.Equal(t, 2, m.Failures)
	assert.Equal(t, 1, m.Timeouts)
	assert.True(t, m.Communications[4].IsProgramming)
	assert.Equal(t, "PCM", m.Name)
	assert.Equal(t, contracts.CategoryCritical, m.Category)
	assert.Equal(t, 1, m.FirstSeen)
}

func TestUnknownModuleRegistered(t *testing.T) {
	table := feed(t, Config{}, []line{{7, "ECU 7A3 did not respond"}})

	m, ok := table.Module("7A3")
	require.True(t, ok)
	assert.Equal(t, contracts.CategoryUnknown, m.Category)
	assert.Empty(t, m.Name)
	assert.Equal(t, "7A3", m.Label())
}

func TestEdges(t *testing.T) {
	table := feed(t, Config{}, []line{
		{1, "Tx 7E0 via 716"},
		{3, "Module 726 did not respond"},
		{20, "Module 720 did not respond"},
	})

	mt := table.Finalize()
	assert.Equal(t, []contracts.ModuleEdge{
		{From: "7E0", To: "716", Count: 1},
		{From: "716", To: "726", Count: 1},
		{From: "7E0", To: "726", Count: 1},
	}, mt.Edges)
}

func TestFinalizeReturnsCopy(t *testing.T) {
	table := feed(t, Config{}, []line{{1, "Module 7E0 did not respond"}})

	mt := table.Finalize()
	mt.Modules["7E0"].Failures = 42
	mt.Modules["7E0"].Communications[0].Line = 99

	again := table.Finalize()
	assert.Equal(t, 0, again.Modules["7E0"].Failures)
	assert.Equal(t, 1, again.Modules["7E0"].Communications[0].Line)
}
