// Package hexnrc decodes raw hex payloads and explains UDS negative response
// codes for the CLI, the MCP tools and the report views.
package hexnrc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"diaglog/src/reference"
)

// ErrInvalidHex is returned for odd-length input or non-hex characters.
var ErrInvalidHex = errors.New("invalid hex")

// BestEffortNote accompanies every frame guess.
const BestEffortNote = "best-effort heuristic split; field boundaries are guessed, not authoritative"

// DecodedByte is one input byte in several notations.
type DecodedByte struct {
	Byte    byte    `json:"byte"`
	Hex     string  `json:"hex"`
	Decimal int     `json:"decimal"`
	ASCII   *string `json:"ascii,omitempty"`
}

// NRCExplanation describes one negative response code.
type NRCExplanation struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Meaning    string `json:"meaning"`
	Category   string `json:"category,omitempty"`
	Benign     bool   `json:"benign"`
	Documented bool   `json:"documented"`
}

// Field is one guessed segment of a frame.
type Field struct {
	Name    string `json:"name"`
	Offset  int    `json:"offset"`
	Hex     string `json:"hex"`
	Meaning string `json:"meaning,omitempty"`
}

// FrameGuess is the heuristic decomposition of a payload.
type FrameGuess struct {
	BestEffort bool    `json:"best_effort"`
	Note       string  `json:"note"`
	Fields     []Field `json:"fields"`
}

// DecodeHexBytes parses s into bytes. Spaces, ':', '-' and ',' separate
// bytes, and each token may carry a 0x prefix.
func DecodeHexBytes(s string) ([]DecodedByte, error) {
	raw, err := parseHex(s)
	if err != nil {
		return nil, err
	}

	out := make([]DecodedByte, len(raw))
	for i, b := range raw {
		d := DecodedByte{Byte: b, Hex: fmt.Sprintf("%02X", b), Decimal: int(b)}
		if b >= 0x20 && b < 0x7F {
			c := string(rune(b))
			d.ASCII = &c
		}
		out[i] = d
	}
	return out, nil
}

func parseHex(s string) ([]byte, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ':' || r == '-' || r == ',' || r == '\t'
	})
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidHex)
	}

	var sb strings.Builder
	for _, tok := range tokens {
		if len(tok) > 2 && (tok[:2] == "0x" || tok[:2] == "0X") {
			tok = tok[2:]
		}
		sb.WriteString(tok)
	}

	joined := sb.String()
	if len(joined)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits (%d)", ErrInvalidHex, len(joined))
	}
	b, err := hex.DecodeString(joined)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return b, nil
}

// ParseCode parses a single NRC byte such as "78", "0x78" or "7F 31 78".
// For a full negative response the last byte is the code.
func ParseCode(s string) (byte, error) {
	b, err := parseHex(s)
	if err != nil {
		return 0, err
	}
	if len(b) > 1 && (len(b) != 3 || b[0] != 0x7F) {
		return 0, fmt.Errorf("%w: expected one byte or a 7F negative response, got %d bytes", ErrInvalidHex, len(b))
	}
	return b[len(b)-1], nil
}

// Decoder resolves NRC names against the reference tables.
type Decoder struct {
	refs *reference.Tables
}

// NewDecoder creates a decoder backed by refs.
func NewDecoder(refs *reference.Tables) *Decoder {
	return &Decoder{refs: refs}
}

// ExplainNRC looks code up in the reference tables. Undocumented codes are
// still returned, with Documented=false.
func (d *Decoder) ExplainNRC(code byte) NRCExplanation {
	hexCode := fmt.Sprintf("%02X", code)
	if n, ok := d.refs.LookupNRC(code); ok {
		return NRCExplanation{
			Code:       hexCode,
			Name:       n.Name,
			Meaning:    n.Meaning,
			Category:   n.Category,
			Benign:     n.Benign,
			Documented: true,
		}
	}

	meaning := "not documented in the loaded reference tables"
	if code >= 0x38 && code <= 0x4F {
		meaning = "reserved by ISO 14229 extended data link security; " + meaning
	} else if code >= 0xF0 && code <= 0xFE {
		meaning = "vehicle-manufacturer specific condition; " + meaning
	}
	return NRCExplanation{
		Code:    hexCode,
		Name:    "unknown",
		Meaning: meaning,
	}
}

// Decompose splits a payload into plausible CAN/ISO-TP/UDS fields.
func (d *Decoder) Decompose(s string) (FrameGuess, error) {
	s = strings.TrimSpace(s)
	guess := FrameGuess{BestEffort: true, Note: BestEffortNote}

	offset := 0
	// "7E8 03 7F 31 78": a leading three-digit token is an 11-bit id.
	if first, rest, ok := strings.Cut(s, " "); ok && len(first) == 3 {
		if id, err := reference.NormalizeAddress(first); err == nil {
			guess.Fields = append(guess.Fields, Field{Name: "can_id", Offset: 0, Hex: id, Meaning: d.moduleName(id)})
			s = rest
		}
	}

	b, err := parseHex(s)
	if err != nil {
		return FrameGuess{}, err
	}

	if len(guess.Fields) == 0 && len(b) >= 3 && b[0] >= 0x01 && b[0] <= 0x07 &&
		!looksLikeSingleFrame(b) && looksLikeSingleFrame(b[2:]) {
		id := fmt.Sprintf("%03X", int(b[0])<<8|int(b[1]))
		guess.Fields = append(guess.Fields, Field{Name: "can_id", Offset: 0, Hex: id, Meaning: d.moduleName(id)})
		b = b[2:]
		offset = 2
	}

	data, pci := splitPCI(b)
	if pci != nil {
		pci.Offset += offset
		guess.Fields = append(guess.Fields, *pci)
		offset++
		if pci.Name == "pci_first_frame" {
			offset++
		}
		if pci.Name == "pci_flow_control" {
			if len(b) > 1 {
				guess.Fields = append(guess.Fields, Field{Name: "block_size", Offset: offset, Hex: fmt.Sprintf("%02X", b[1])})
			}
			if len(b) > 2 {
				guess.Fields = append(guess.Fields, Field{Name: "st_min", Offset: offset + 1, Hex: fmt.Sprintf("%02X", b[2])})
			}
			return guess, nil
		}
	}

	var padding []byte
	if pci != nil && pci.Name == "pci_single_frame" {
		n := int(b[0] & 0x0F)
		padding = data[n:]
		data = data[:n]
	}

	guess.Fields = append(guess.Fields, d.serviceFields(data, offset, pci == nil || pci.Name != "pci_consecutive_frame")...)

	if len(padding) > 0 {
		guess.Fields = append(guess.Fields, Field{
			Name:   "padding",
			Offset: offset + len(data),
			Hex:    strings.ToUpper(hex.EncodeToString(padding)),
		})
	}
	return guess, nil
}

func (d *Decoder) moduleName(addr string) string {
	canon, e, ok := d.refs.Canonical(addr)
	if !ok {
		return ""
	}
	if canon != addr {
		return e.Name + " response"
	}
	return e.Name
}

// fitsPCI reports whether b starts with a single-frame PCI consistent with
// its length.
func fitsPCI(b []byte) bool {
	if len(b) == 0 || b[0]>>4 != 0 {
		return false
	}
	n := int(b[0] & 0x0F)
	return n >= 1 && n <= 7 && n <= len(b)-1
}

// looksLikeSingleFrame reports whether b reads as a single frame carrying a
// known service.
func looksLikeSingleFrame(b []byte) bool {
	if !fitsPCI(b) {
		return false
	}
	if b[1] == 0x7F {
		return true
	}
	_, known := ServiceName(b[1])
	return known
}

// splitPCI strips an ISO-TP protocol control byte when the first nibble is
// consistent with one. It returns the remaining data.
func splitPCI(b []byte) ([]byte, *Field) {
	if len(b) < 2 {
		return b, nil
	}
	if !fitsPCI(b) {
		// Raw UDS messages start with the service id, which shares the
		// first-frame, consecutive and flow-control nibbles.
		if _, known := ServiceName(b[0]); known || b[0] == 0x7F {
			return b, nil
		}
	}
	pciHex := fmt.Sprintf("%02X", b[0])
	switch b[0] >> 4 {
	case 0x0:
		if !fitsPCI(b) {
			return b, nil
		}
		return b[1:], &Field{Name: "pci_single_frame", Hex: pciHex, Meaning: fmt.Sprintf("single frame, %d data bytes", b[0]&0x0F)}
	case 0x1:
		if len(b) < 3 {
			return b, nil
		}
		total := int(b[0]&0x0F)<<8 | int(b[1])
		return b[2:], &Field{Name: "pci_first_frame", Hex: fmt.Sprintf("%02X%02X", b[0], b[1]), Meaning: fmt.Sprintf("first frame, %d bytes total", total)}
	case 0x2:
		return b[1:], &Field{Name: "pci_consecutive_frame", Hex: pciHex, Meaning: fmt.Sprintf("consecutive frame, sequence %d", b[0]&0x0F)}
	case 0x3:
		if b[0]&0x0F > 2 {
			return b, nil
		}
		status := [...]string{"continue to send", "wait", "overflow"}[b[0]&0x0F]
		return b[1:], &Field{Name: "pci_flow_control", Hex: pciHex, Meaning: "flow control, " + status}
	}
	return b, nil
}

func (d *Decoder) serviceFields(data []byte, offset int, hasService bool) []Field {
	if len(data) == 0 {
		return nil
	}
	if !hasService {
		return []Field{{Name: "payload", Offset: offset, Hex: strings.ToUpper(hex.EncodeToString(data))}}
	}

	var fields []Field
	sid := data[0]

	if sid == 0x7F && len(data) >= 3 {
		name, _ := ServiceName(data[1])
		nrc := d.ExplainNRC(data[2])
		fields = append(fields,
			Field{Name: "service_id", Offset: offset, Hex: "7F", Meaning: "negative response"},
			Field{Name: "rejected_service", Offset: offset + 1, Hex: fmt.Sprintf("%02X", data[1]), Meaning: name},
			Field{Name: "nrc", Offset: offset + 2, Hex: nrc.Code, Meaning: nrc.Name},
		)
		if len(data) > 3 {
			fields = append(fields, Field{Name: "payload", Offset: offset + 3, Hex: strings.ToUpper(hex.EncodeToString(data[3:]))})
		}
		return fields
	}

	name, known := ServiceName(sid)
	if !known {
		return []Field{{Name: "payload", Offset: offset, Hex: strings.ToUpper(hex.EncodeToString(data))}}
	}
	fields = append(fields, Field{Name: "service_id", Offset: offset, Hex: fmt.Sprintf("%02X", sid), Meaning: name})
	rest := data[1:]
	pos := offset + 1

	switch sid {
	case 0x22, 0x62, 0x2E, 0x6E:
		if len(rest) >= 2 {
			fields = append(fields, Field{Name: "did", Offset: pos, Hex: fmt.Sprintf("%02X%02X", rest[0], rest[1])})
			rest = rest[2:]
			pos += 2
		}
	}

	if len(rest) > 0 {
		fields = append(fields, Field{Name: "payload", Offset: pos, Hex: strings.ToUpper(hex.EncodeToString(rest))})
	}
	return fields
}

var services = map[byte]string{
	0x10: "DiagnosticSessionControl",
	0x11: "ECUReset",
	0x14: "ClearDiagnosticInformation",
	0x19: "ReadDTCInformation",
	0x22: "ReadDataByIdentifier",
	0x23: "ReadMemoryByAddress",
	0x27: "SecurityAccess",
	0x28: "CommunicationControl",
	0x2E: "WriteDataByIdentifier",
	0x2F: "InputOutputControlByIdentifier",
	0x31: "RoutineControl",
	0x34: "RequestDownload",
	0x35: "RequestUpload",
	0x36: "TransferData",
	0x37: "RequestTransferExit",
	0x3E: "TesterPresent",
	0x85: "ControlDTCSetting",
}

// ServiceName names a UDS request or positive response service id.
func ServiceName(sid byte) (string, bool) {
	if name, ok := services[sid]; ok {
		return name, true
	}
	if sid >= 0x40 {
		if name, ok := services[sid-0x40]; ok {
			return name + " positive response", true
		}
	}
	return "", false
}
