package ingest

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"time"

	"diaglog/src/contracts"
	"diaglog/src/diagerr"
)

// timestampAttrs name the attributes an XML element's timestamp is read from.
var timestampAttrs = []string{"time", "timestamp", "date", "datetime"}

// element is an open XML element whose record has not been emitted yet.
type element struct {
	name    string
	attrs   []xml.Attr
	line    int
	text    strings.Builder
	emitted bool
}

// xmlSource walks the token stream without building a tree. An element's
// record is emitted once its leading text is complete, at its first child or
// at its end tag, which keeps records in document order.
type xmlSource struct {
	dec      *xml.Decoder
	encoding string
	keywords []string

	stack   []*element
	pending []contracts.LogRecord
	sawRoot bool
	done    bool
}

func newXMLSource(r io.Reader, encoding string, opts Options) *xmlSource {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	// Input is already UTF-8; a declared charset refers to the original bytes.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	keywords := make([]string, 0, len(opts.XMLKeywords))
	for _, k := range opts.XMLKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &xmlSource{dec: dec, encoding: encoding, keywords: keywords}
}

func (s *xmlSource) Format() Format   { return FormatXML }
func (s *xmlSource) Encoding() string { return s.encoding }

func (s *xmlSource) Next() (contracts.LogRecord, error) {
	for len(s.pending) == 0 {
		if s.done {
			return contracts.LogRecord{}, io.EOF
		}
		if err := s.step(); err != nil {
			s.done = true
			s.pending = nil
			return contracts.LogRecord{}, err
		}
	}
	rec := s.pending[0]
	s.pending = s.pending[1:]
	return rec, nil
}

// step consumes one token.
func (s *xmlSource) step() error {
	line, _ := s.dec.InputPos()
	tok, err := s.dec.Token()
	if errors.Is(err, io.EOF) {
		switch {
		case len(s.stack) > 0:
			return &diagerr.MalformedInputError{Format: string(FormatXML), Line: line,
				Err: errors.New("unclosed element <" + s.stack[len(s.stack)-1].name + ">")}
		case !s.sawRoot:
			return &diagerr.MalformedInputError{Format: string(FormatXML), Line: line, Err: errors.New("no root element")}
		}
		s.done = true
		return nil
	}
	if err != nil {
		var syn *xml.SyntaxError
		if errors.As(err, &syn) {
			line = syn.Line
		}
		return &diagerr.MalformedInputError{Format: string(FormatXML), Line: line, Err: err}
	}

	switch t := tok.(type) {
	case xml.StartElement:
		s.sawRoot = true
		if n := len(s.stack); n > 0 {
			s.emit(n - 1)
		}
		s.stack = append(s.stack, &element{
			name:  t.Name.Local,
			attrs: append([]xml.Attr(nil), t.Attr...),
			line:  line,
		})
	case xml.CharData:
		if n := len(s.stack); n > 0 && !s.stack[n-1].emitted {
			s.stack[n-1].text.Write(t)
		} else if n == 0 && strings.TrimSpace(string(t)) != "" {
			return &diagerr.MalformedInputError{Format: string(FormatXML), Line: line, Err: errors.New("text outside root element")}
		}
	case xml.EndElement:
		n := len(s.stack)
		s.emit(n - 1)
		s.stack = s.stack[:n-1]
	}
	return nil
}

// emit turns stack[i] into a record if it carries content that passes the
// keyword filter. It runs at most once per element.
func (s *xmlSource) emit(i int) {
	el := s.stack[i]
	if el.emitted {
		return
	}
	el.emitted = true

	text := strings.Join(strings.Fields(el.text.String()), " ")

	var parts []string
	attrs := make(map[string]string, len(el.attrs))
	for _, a := range el.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		attrs[a.Name.Local] = a.Value
		parts = append(parts, a.Name.Local+"="+a.Value)
	}
	if text != "" {
		parts = append(parts, text)
	}
	raw := strings.Join(parts, " ")
	if raw == "" || !s.matches(el.name+" "+raw) {
		return
	}

	path := make([]string, 0, i+1)
	for _, e := range s.stack[:i+1] {
		path = append(path, e.name)
	}

	rec := contracts.LogRecord{
		LineNumber: el.line,
		RawText:    raw,
		TagPath:    path,
	}
	if len(attrs) > 0 {
		rec.Attributes = attrs
	}
	rec.Timestamp = xmlTimestamp(attrs, text)
	s.pending = append(s.pending, rec)
}

func (s *xmlSource) matches(content string) bool {
	if len(s.keywords) == 0 {
		return true
	}
	content = strings.ToLower(content)
	for _, k := range s.keywords {
		if strings.Contains(content, k) {
			return true
		}
	}
	return false
}

func xmlTimestamp(attrs map[string]string, text string) *time.Time {
	for _, name := range timestampAttrs {
		for k, v := range attrs {
			if strings.EqualFold(k, name) {
				if ts := ParseTimestamp(v); ts != nil {
					return ts
				}
			}
		}
	}
	return ParseTimestamp(text)
}
