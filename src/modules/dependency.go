package modules

import (
	"diaglog/src/contracts"
)

// InferMissingDependencies returns, for every non-gateway module with a
// failure or timeout, the gateways it was missing: all configured gateways
// when none of them had a successful communication before the module's
// first failure. Modules whose only problems are folded intermittent
// timeouts, and which did succeed, are left out. The table is not modified.
func InferMissingDependencies(t *Table) map[string][]string {
	out := make(map[string][]string)
	if len(t.gateways) == 0 {
		return out
	}

	for _, addr := range t.addresses() {
		m := t.modules[addr]
		if m.Gateway || m.Failures+m.Timeouts == 0 {
			continue
		}

		if isIntermittentOnly(m, t.intermittent(m)) {
			continue
		}

		firstFail := firstFailureLine(m)
		if t.gatewaySucceededBefore(firstFail) {
			continue
		}

		out[addr] = t.Gateways()
	}
	return out
}

func isIntermittentOnly(m *contracts.ECUModule, sig *contracts.IntermittentSignal) bool {
	return sig != nil && m.Failures == 0 && m.Timeouts == sig.Timeouts && m.Successes > 0
}

func firstFailureLine(m *contracts.ECUModule) int {
	for _, c := range m.Communications {
		if c.Outcome != contracts.CommSuccess {
			return c.Line
		}
	}
	return 0
}

// gatewaySucceededBefore reports a successful exchange with any gateway,
// either addressed to it or routed through it, before line.
func (t *Table) gatewaySucceededBefore(line int) bool {
	for _, m := range t.modules {
		for _, c := range m.Communications {
			if c.Line >= line {
				break
			}
			if c.Outcome != contracts.CommSuccess {
				continue
			}
			if m.Gateway || t.isGW[c.Peer] {
				return true
			}
		}
	}
	return false
}

// intermittent folds the densest run of timeouts within IntermittentWindow
// lines into one signal when it reaches IntermittentThreshold.
func (t *Table) intermittent(m *contracts.ECUModule) *contracts.IntermittentSignal {
	var lines []int
	for _, c := range m.Communications {
		if c.Outcome == contracts.CommTimeout {
			lines = append(lines, c.Line)
		}
	}
	if len(lines) < t.cfg.IntermittentThreshold {
		return nil
	}

	bestStart, bestLen := 0, 0
	start := 0
	for end := range lines {
		for lines[end]-lines[start] > t.cfg.IntermittentWindow {
			start++
		}
		if n := end - start + 1; n > bestLen {
			bestStart, bestLen = start, n
		}
	}
	if bestLen < t.cfg.IntermittentThreshold {
		return nil
	}
	return &contracts.IntermittentSignal{
		Timeouts:  bestLen,
		FirstLine: lines[bestStart],
		LastLine:  lines[bestStart+bestLen-1],
	}
}

// Finalize stores the dependency inference and intermittent signals on the
// modules and returns a deep copy of the table state. It can be called more
// than once; each call recomputes from the communications seen so far.
func (t *Table) Finalize() contracts.ModuleTable {
	deps := InferMissingDependencies(t)

	var flags []contracts.DependencyFlag
	for _, addr := range t.addresses() {
		m := t.modules[addr]
		m.Intermittent = t.intermittent(m)
		m.InferredMissingDependencies = deps[addr]

		for _, gw := range deps[addr] {
			flags = append(flags, contracts.DependencyFlag{
				Module:   addr,
				Gateway:  gw,
				Severity: t.severity(m, gw),
				Line:     firstFailureLine(m),
			})
		}
	}

	return t.snapshot(flags)
}

// severity is HIGH when either side of the dependency is critical-category.
func (t *Table) severity(m *contracts.ECUModule, gateway string) contracts.RiskLevel {
	if m.Category == contracts.CategoryCritical {
		return contracts.RiskHigh
	}
	if e, ok := t.refs.LookupECU(gateway); ok && e.Category == contracts.CategoryCritical {
		return contracts.RiskHigh
	}
	return contracts.RiskMedium
}

func (t *Table) snapshot(flags []contracts.DependencyFlag) contracts.ModuleTable {
	out := contracts.ModuleTable{
		Modules:         make(map[string]*contracts.ECUModule, len(t.modules)),
		DependencyFlags: flags,
	}
	for addr, m := range t.modules {
		c := *m
		c.Communications = append([]contracts.Communication(nil), m.Communications...)
		c.InferredMissingDependencies = append([]string(nil), m.InferredMissingDependencies...)
		if m.Intermittent != nil {
			sig := *m.Intermittent
			c.Intermittent = &sig
		}
		out.Modules[addr] = &c
	}
	for _, k := range t.edgeOrder {
		out.Edges = append(out.Edges, contracts.ModuleEdge{From: k.from, To: k.to, Count: t.edges[k]})
	}
	return out
}
