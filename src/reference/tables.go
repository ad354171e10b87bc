// Package reference loads the static ECU and NRC tables the engine names
// modules and negative responses with.
//
// Tables are loaded once, validated, and never mutated afterwards. They are
// passed into the pipeline explicitly so tests can substitute their own.
package reference

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
)

//go:embed defaults.yaml
var defaultTables []byte

// NRC categories.
const (
	NRCGeneral     = "general"
	NRCRequest     = "request"
	NRCConditions  = "conditions"
	NRCSecurity    = "security"
	NRCProgramming = "programming"
	NRCPending     = "pending"
	NRCSession     = "session"
	NRCVehicle     = "vehicle"
)

var nrcCategories = map[string]bool{
	NRCGeneral: true, NRCRequest: true, NRCConditions: true, NRCSecurity: true,
	NRCProgramming: true, NRCPending: true, NRCSession: true, NRCVehicle: true,
}

// ECUEntry describes one known module address.
type ECUEntry struct {
	Address     string                   `yaml:"address" toml:"address" json:"address"`
	Name        string                   `yaml:"name" toml:"name" json:"name"`
	Description string                   `yaml:"description" toml:"description" json:"description,omitempty"`
	Category    contracts.ModuleCategory `yaml:"category" toml:"category" json:"category"`
	Gateway     bool                     `yaml:"gateway" toml:"gateway" json:"gateway,omitempty"`
}

// NRCEntry describes one documented negative response code.
type NRCEntry struct {
	Code     string `yaml:"code" toml:"code" json:"code"`
	Name     string `yaml:"name" toml:"name" json:"name"`
	Meaning  string `yaml:"meaning" toml:"meaning" json:"meaning"`
	Category string `yaml:"category" toml:"category" json:"category"`
	Benign   bool   `yaml:"benign" toml:"benign" json:"benign,omitempty"`
}

// file is the on-disk shape shared by the YAML and TOML formats.
type file struct {
	ECUs []ECUEntry `yaml:"ecus" toml:"ecus"`
	NRCs []NRCEntry `yaml:"nrcs" toml:"nrcs"`
}

// Tables is the immutable, validated reference data.
type Tables struct {
	source   string
	ecus     map[string]ECUEntry
	nrcs     map[byte]NRCEntry
	gateways []string
}

// Default returns the built-in tables.
func Default() (*Tables, error) {
	return Parse(defaultTables, "yaml", "builtin")
}

// MustDefault returns the built-in tables and panics if they are corrupt.
// The embedded file is covered by tests, so this only fails on a broken build.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("failed to load built-in reference tables: %v", err))
	}
	return t
}

// Load reads tables from a .yaml, .yml or .toml file.
func Load(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &diagerr.ReferenceDataMissingError{Path: path, Err: err}
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Parse(data, format, path)
}

// Parse decodes tables in the given format ("yaml", "yml" or "toml").
func Parse(data []byte, format, source string) (*Tables, error) {
	var f file

	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, &diagerr.ReferenceDataMissingError{Path: source, Err: fmt.Errorf("failed to parse yaml: %w", err)}
		}
	case "toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, &diagerr.ReferenceDataMissingError{Path: source, Err: fmt.Errorf("failed to parse toml: %w", err)}
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, &diagerr.ReferenceDataMissingError{Path: source, Err: fmt.Errorf("unknown keys: %v", undecoded)}
		}
	default:
		return nil, &diagerr.ReferenceDataMissingError{Path: source, Err: fmt.Errorf("unsupported table format %q", format)}
	}

	t, err := New(f.ECUs, f.NRCs)
	if err != nil {
		var missing *diagerr.ReferenceDataMissingError
		if errors.As(err, &missing) {
			missing.Path = source
		}
		return nil, err
	}
	t.source = source
	return t, nil
}

// New validates entries and builds tables from them.
func New(ecus []ECUEntry, nrcs []NRCEntry) (*Tables, error) {
	if len(ecus) == 0 {
		return nil, &diagerr.ReferenceDataMissingError{Table: "ecu", Err: fmt.Errorf("no entries")}
	}
	if len(nrcs) == 0 {
		return nil, &diagerr.ReferenceDataMissingError{Table: "nrc", Err: fmt.Errorf("no entries")}
	}

	t := &Tables{
		source: "inline",
		ecus:   make(map[string]ECUEntry, len(ecus)),
		nrcs:   make(map[byte]NRCEntry, len(nrcs)),
	}

	for i, e := range ecus {
		addr, err := NormalizeAddress(e.Address)
		if err != nil {
			return nil, &diagerr.ReferenceDataMissingError{Table: "ecu", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		if _, dup := t.ecus[addr]; dup {
			return nil, &diagerr.ReferenceDataMissingError{Table: "ecu", Err: fmt.Errorf("duplicate address %s", addr)}
		}
		e.Address = addr
		switch e.Category {
		case "":
			e.Category = contracts.CategoryStandard
		case contracts.CategoryCritical, contracts.CategoryStandard:
		default:
			return nil, &diagerr.ReferenceDataMissingError{Table: "ecu", Err: fmt.Errorf("address %s: invalid category %q", addr, e.Category)}
		}
		t.ecus[addr] = e
		if e.Gateway {
			t.gateways = append(t.gateways, addr)
		}
	}
	sort.Strings(t.gateways)

	for i, n := range nrcs {
		code, err := ParseCode(n.Code)
		if err != nil {
			return nil, &diagerr.ReferenceDataMissingError{Table: "nrc", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		if _, dup := t.nrcs[code]; dup {
			return nil, &diagerr.ReferenceDataMissingError{Table: "nrc", Err: fmt.Errorf("duplicate code %02X", code)}
		}
		if !nrcCategories[n.Category] {
			return nil, &diagerr.ReferenceDataMissingError{Table: "nrc", Err: fmt.Errorf("code %02X: invalid category %q", code, n.Category)}
		}
		n.Code = fmt.Sprintf("%02X", code)
		t.nrcs[code] = n
	}

	return t, nil
}

// Source names where the tables were loaded from.
func (t *Tables) Source() string { return t.source }

// LookupECU returns the entry for an exact address.
func (t *Tables) LookupECU(addr string) (ECUEntry, bool) {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return ECUEntry{}, false
	}
	e, ok := t.ecus[norm]
	return e, ok
}

// Canonical maps a request or response address onto the module it belongs to.
// Responses arrive on request+8, so 7E8 resolves to the 7E0 entry. Unknown
// addresses are returned normalized with ok=false.
func (t *Tables) Canonical(addr string) (string, ECUEntry, bool) {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return strings.ToUpper(addr), ECUEntry{}, false
	}
	if e, ok := t.ecus[norm]; ok {
		return norm, e, true
	}
	v, _ := strconv.ParseUint(norm, 16, 16)
	if v >= 8 {
		req := fmt.Sprintf("%03X", v-8)
		if e, ok := t.ecus[req]; ok {
			return req, e, true
		}
	}
	return norm, ECUEntry{}, false
}

// LookupNRC returns the entry for a documented code.
func (t *Tables) LookupNRC(code byte) (NRCEntry, bool) {
	n, ok := t.nrcs[code]
	return n, ok
}

// Gateways returns the addresses flagged as gateway-class, sorted.
func (t *Tables) Gateways() []string {
	out := make([]string, len(t.gateways))
	copy(out, t.gateways)
	return out
}

// ECUs returns all module entries sorted by address.
func (t *Tables) ECUs() []ECUEntry {
	out := make([]ECUEntry, 0, len(t.ecus))
	for _, e := range t.ecus {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// NRCs returns all documented codes sorted by value.
func (t *Tables) NRCs() []NRCEntry {
	out := make([]NRCEntry, 0, len(t.nrcs))
	for _, n := range t.nrcs {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// NormalizeAddress upper-cases a 3-digit hex address, accepting a 0x prefix.
func NormalizeAddress(addr string) (string, error) {
	a := strings.ToUpper(strings.TrimSpace(addr))
	a = strings.TrimPrefix(a, "0X")
	if len(a) != 3 {
		return "", fmt.Errorf("address %q is not 3 hex digits", addr)
	}
	if _, err := strconv.ParseUint(a, 16, 16); err != nil {
		return "", fmt.Errorf("address %q is not hex", addr)
	}
	return a, nil
}

// ParseCode parses a one-byte hex code such as "78" or "0x78".
func ParseCode(s string) (byte, error) {
	c := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if len(c) == 0 || len(c) > 2 {
		return 0, fmt.Errorf("code %q is not a single hex byte", s)
	}
	v, err := strconv.ParseUint(c, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("code %q is not hex", s)
	}
	return byte(v), nil
}
