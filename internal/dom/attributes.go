// internal/dom/attributes.go
package dom

import (
	"iter"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/xkilldash9x/domtree/internal/style"
)

// EventType names an event a listener is registered for, e.g. "click".
type EventType string

// Event is handed to a Listener. Dispatch is left to the embedding framework.
type Event struct {
	Type   EventType
	Target NodeID
}

// Listener is an attribute value that reacts to events.
type Listener func(Event)

// KnownAttr enumerates attribute names with first-class support.
type KnownAttr int

const (
	AttrID KnownAttr = iota + 1
	AttrClass
	AttrStyle
	AttrSrc
	AttrHref
	AttrName
	AttrValue
	AttrTitle
)

var knownAttrNames = map[string]KnownAttr{
	"id":    AttrID,
	"class": AttrClass,
	"style": AttrStyle,
	"src":   AttrSrc,
	"href":  AttrHref,
	"name":  AttrName,
	"value": AttrValue,
	"title": AttrTitle,
}

func (k KnownAttr) String() string {
	for name, v := range knownAttrNames {
		if v == k {
			return name
		}
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// QName is a namespaced attribute name such as xlink:href.
type QName struct {
	Space, Local string
}

func (q QName) String() string { return q.Space + ":" + q.Local }

// Attr is one (name, value) pair as written by the caller. Values are usually
// bool, float64, string, style.Style or Listener.
type Attr struct {
	Name  string
	Value any
}

// Attributes holds an element's attributes split into four disjoint maps.
type Attributes struct {
	Namespaced map[QName]any
	Known      map[KnownAttr]any
	Simple     map[string]any
	Listeners  map[EventType]Listener
}

// NewAttributes classifies pairs in order; a later duplicate overwrites an earlier one.
func NewAttributes(attrs ...Attr) Attributes {
	var a Attributes
	for _, attr := range attrs {
		a.Set(attr.Name, attr.Value)
	}
	return a
}

type attrClass int

const (
	classSimple attrClass = iota
	classNamespaced
	classListener
	classKnown
)

// classify decides which map a name belongs in. isListener reports whether the
// value being stored is a Listener, which only matters for on* names.
func classify(name string, isListener bool) (attrClass, QName, EventType, KnownAttr) {
	if space, local, ok := strings.Cut(name, ":"); ok {
		return classNamespaced, QName{Space: space, Local: local}, "", 0
	}
	if isListener && len(name) > 2 && strings.HasPrefix(name, "on") {
		return classListener, QName{}, EventType(strings.ToLower(name[2:])), 0
	}
	if k, ok := knownAttrNames[name]; ok {
		return classKnown, QName{}, "", k
	}
	return classSimple, QName{}, "", 0
}

// Set stores value under name, replacing any previous value of that name.
func (a *Attributes) Set(name string, value any) {
	l, isListener := value.(Listener)
	if fn, ok := value.(func(Event)); ok {
		l, isListener = fn, true
	}

	class, q, ev, k := classify(name, isListener)
	switch class {
	case classNamespaced:
		if a.Namespaced == nil {
			a.Namespaced = make(map[QName]any)
		}
		a.Namespaced[q] = value
	case classListener:
		if a.Listeners == nil {
			a.Listeners = make(map[EventType]Listener)
		}
		a.Listeners[ev] = l
	case classKnown:
		if a.Known == nil {
			a.Known = make(map[KnownAttr]any)
		}
		a.Known[k] = value
	default:
		if a.Simple == nil {
			a.Simple = make(map[string]any)
		}
		a.Simple[name] = value
	}
}

// Get looks name up through the same classification Set uses. Listener names are
// tried in the listener map first.
func (a Attributes) Get(name string) (any, bool) {
	if _, _, ev, _ := classify(name, true); ev != "" {
		if l, ok := a.Listeners[ev]; ok {
			return l, true
		}
	}
	class, q, _, k := classify(name, false)
	var v any
	var ok bool
	switch class {
	case classNamespaced:
		v, ok = a.Namespaced[q]
	case classKnown:
		v, ok = a.Known[k]
	default:
		v, ok = a.Simple[name]
	}
	return v, ok
}

// GetString returns the attribute formatted as text.
func (a Attributes) GetString(name string) (string, bool) {
	v, ok := a.Get(name)
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// Listener returns the listener registered for an event type.
func (a Attributes) Listener(ev EventType) (Listener, bool) {
	l, ok := a.Listeners[ev]
	return l, ok
}

// Len counts attributes across all four maps.
func (a Attributes) Len() int {
	return len(a.Namespaced) + len(a.Known) + len(a.Simple) + len(a.Listeners)
}

// Clone returns a copy whose maps are independent of a. Values are copied shallowly.
func (a Attributes) Clone() Attributes {
	return Attributes{
		Namespaced: maps.Clone(a.Namespaced),
		Known:      maps.Clone(a.Known),
		Simple:     maps.Clone(a.Simple),
		Listeners:  maps.Clone(a.Listeners),
	}
}

// DropListeners removes and returns every listener.
func (a *Attributes) DropListeners() map[EventType]Listener {
	dropped := a.Listeners
	a.Listeners = nil
	return dropped
}

// All yields non-listener attributes by name in sorted order.
func (a Attributes) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		flat := make(map[string]any, len(a.Namespaced)+len(a.Known)+len(a.Simple))
		for q, v := range a.Namespaced {
			flat[q.String()] = v
		}
		for k, v := range a.Known {
			flat[k.String()] = v
		}
		for name, v := range a.Simple {
			flat[name] = v
		}
		for _, name := range slices.Sorted(maps.Keys(flat)) {
			if !yield(name, flat[name]) {
				return
			}
		}
	}
}

// FormatValue renders an attribute value as markup text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case rune:
		return string(val)
	case style.Style:
		return val.String()
	case Listener, func(Event):
		return ""
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		return ""
	}
}
