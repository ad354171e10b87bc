// Package modules tracks per-ECU communication outcomes over one session and
// infers missing gateway dependencies from them.
package modules

import (
	"sort"

	"diaglog/src/contracts"
	"diaglog/src/patterns"
	"diaglog/src/reference"
)

// Config tunes the tracker.
type Config struct {
	// Gateways overrides the gateway-class modules from the reference tables.
	Gateways []string
	// EdgeWindow is the line distance within which two records are causally
	// adjacent.
	EdgeWindow int
	// IntermittentThreshold timeouts within IntermittentWindow lines fold
	// into one intermittent signal.
	IntermittentThreshold int
	IntermittentWindow    int
}

// DefaultConfig returns the tracker defaults.
func DefaultConfig() Config {
	return Config{
		EdgeWindow:            5,
		IntermittentThreshold: 3,
		IntermittentWindow:    200,
	}
}

type edgeKey struct{ from, to string }

// Table is the module state of one pipeline run. It is mutated by Update and
// is not safe for concurrent use.
type Table struct {
	refs     *reference.Tables
	cfg      Config
	gateways []string
	isGW     map[string]bool

	modules   map[string]*contracts.ECUModule
	edges     map[edgeKey]int
	edgeOrder []edgeKey
	recent    map[string]int // address -> last line referenced
}

// NewTable creates an empty table. Zero config values take the defaults.
func NewTable(refs *reference.Tables, cfg Config) *Table {
	def := DefaultConfig()
	if cfg.EdgeWindow <= 0 {
		cfg.EdgeWindow = def.EdgeWindow
	}
	if cfg.IntermittentThreshold <= 0 {
		cfg.IntermittentThreshold = def.IntermittentThreshold
	}
	if cfg.IntermittentWindow <= 0 {
		cfg.IntermittentWindow = def.IntermittentWindow
	}

	gateways := refs.Gateways()
	if len(cfg.Gateways) > 0 {
		gateways = gateways[:0]
		for _, g := range cfg.Gateways {
			if norm, err := reference.NormalizeAddress(g); err == nil {
				gateways = append(gateways, norm)
			}
		}
		sort.Strings(gateways)
	}

	isGW := make(map[string]bool, len(gateways))
	for _, g := range gateways {
		isGW[g] = true
	}

	return &Table{
		refs:     refs,
		cfg:      cfg,
		gateways: gateways,
		isGW:     isGW,
		modules:  make(map[string]*contracts.ECUModule),
		edges:    make(map[edgeKey]int),
		recent:   make(map[string]int),
	}
}

// Gateways returns the gateway-class addresses in effect.
func (t *Table) Gateways() []string {
	return append([]string(nil), t.gateways...)
}

// Module returns the live state of addr.
func (t *Table) Module(addr string) (*contracts.ECUModule, bool) {
	m, ok := t.modules[addr]
	return m, ok
}

// Update registers the modules a record references and, when the record
// carries an outcome, appends a communication to the addressed module.
func (t *Table) Update(rec contracts.LogRecord, matches []contracts.PatternMatch) {
	addrs := patterns.Addresses(matches)
	if len(addrs) == 0 {
		return
	}

	for _, addr := range addrs {
		t.register(addr, rec.LineNumber)
	}

	target := addrs[0]
	for _, addr := range addrs {
		if !t.isGW[addr] {
			target = addr
			break
		}
	}

	if outcome, ok := t.outcome(rec.RawText, matches); ok {
		peer := ""
		for _, addr := range addrs {
			if addr != target {
				peer = addr
				break
			}
		}
		m := t.modules[target]
		m.Communications = append(m.Communications, contracts.Communication{
			Peer:          peer,
			Outcome:       outcome,
			IsProgramming: patterns.IsProgrammingContext(rec.RawText),
			Line:          rec.LineNumber,
		})
		switch outcome {
		case contracts.CommSuccess:
			m.Successes++
		case contracts.CommFailure:
			m.Failures++
		case contracts.CommTimeout:
			m.Timeouts++
		}
	}

	t.recordEdges(addrs, rec.LineNumber)
}

func (t *Table) register(addr string, line int) {
	if _, ok := t.modules[addr]; ok {
		return
	}
	m := &contracts.ECUModule{
		Address:   addr,
		Category:  contracts.CategoryUnknown,
		Gateway:   t.isGW[addr],
		FirstSeen: line,
	}
	if e, ok := t.refs.LookupECU(addr); ok {
		m.Name = e.Name
		m.Category = e.Category
	}
	t.modules[addr] = m
}

// outcome derives the communication result of a record, if it has one.
func (t *Table) outcome(text string, matches []contracts.PatternMatch) (contracts.CommOutcome, bool) {
	if patterns.HasTimeoutWords(text) {
		return contracts.CommTimeout, true
	}

	benignNRC := false
	for _, m := range patterns.MatchesOfKind(matches, contracts.MatchNRC) {
		code, err := reference.ParseCode(m.Value)
		if err != nil {
			continue
		}
		if n, ok := t.refs.LookupNRC(code); ok && n.Benign {
			benignNRC = true
			continue
		}
		return contracts.CommFailure, true
	}

	if patterns.HasFailureWords(text) || patterns.HasFatalWords(text) {
		return contracts.CommFailure, true
	}
	if patterns.HasSuccessWords(text) || benignNRC {
		return contracts.CommSuccess, true
	}
	return "", false
}

// recordEdges links addresses of the same record and addresses referenced
// within EdgeWindow lines before it.
func (t *Table) recordEdges(addrs []string, line int) {
	current := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		current[a] = true
	}

	for i := 0; i < len(addrs); i++ {
		for j := i + 1; j < len(addrs); j++ {
			t.addEdge(addrs[i], addrs[j])
		}
	}

	var prior []string
	for addr, last := range t.recent {
		if line-last > t.cfg.EdgeWindow {
			delete(t.recent, addr)
			continue
		}
		if !current[addr] {
			prior = append(prior, addr)
		}
	}
	sort.Strings(prior)
	for _, from := range prior {
		for _, to := range addrs {
			t.addEdge(from, to)
		}
	}

	for _, a := range addrs {
		t.recent[a] = line
	}
}

func (t *Table) addEdge(from, to string) {
	k := edgeKey{from, to}
	if _, ok := t.edges[k]; !ok {
		t.edgeOrder = append(t.edgeOrder, k)
	}
	t.edges[k]++
}

// addresses returns the tracked addresses sorted.
func (t *Table) addresses() []string {
	out := make([]string, 0, len(t.modules))
	for addr := range t.modules {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
