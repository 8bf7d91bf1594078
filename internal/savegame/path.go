package savegame

import (
	"encoding/xml"
	"strings"

	"vaultfinder/internal/report"
)

// Element is one open XML element on the path.
type Element struct {
	Tag   string
	Attrs []xml.Attr

	// object is the record created when this element opened, if any.
	object *report.ObjectRecord
}

func newElement(start xml.StartElement) *Element {
	return &Element{
		Tag:   start.Name.Local,
		Attrs: start.Copy().Attr,
	}
}

// Attr returns the value of the named attribute, or "" when absent.
func (e *Element) Attr(name string) string {
	v, _ := e.LookupAttr(name)
	return v
}

// LookupAttr returns the value of the named attribute and whether it exists.
// A nil element has no attributes.
func (e *Element) LookupAttr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (e *Element) is(tag string) bool {
	return e != nil && e.Tag == tag
}

// Path is the stack of currently open elements, root first.
type Path []*Element

// back returns the n-th element from the top (1 = current element), or
// nil when the path is shorter than n.
func (p Path) back(n int) *Element {
	if n < 1 || n > len(p) {
		return nil
	}
	return p[len(p)-n]
}

// trim drops the top n elements.
func (p Path) trim(n int) Path {
	if n >= len(p) {
		return nil
	}
	return p[:len(p)-n]
}

// endsWith reports whether the innermost elements carry tags, outermost first.
func (p Path) endsWith(tags ...string) bool {
	if len(p) < len(tags) {
		return false
	}
	tail := p[len(p)-len(tags):]
	for i, tag := range tags {
		if tail[i].Tag != tag {
			return false
		}
	}
	return true
}

// String renders the path for error messages, e.g.
// savegame/universe/component[code=ABC-123].
func (p Path) String() string {
	var b strings.Builder
	for i, e := range p {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(e.Tag)
		if code, ok := e.LookupAttr("code"); ok {
			b.WriteString("[code=")
			b.WriteString(code)
			b.WriteByte(']')
		}
	}
	return b.String()
}
