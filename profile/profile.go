// Package profile holds the catalogue of FIT types and messages used to
// decode data messages. A catalogue is built from the vendor spreadsheet
// (Load), from the rows compiled into this package (Builtin) or from a
// CBOR artifact written by Save (Read). Catalogues never change after they
// are built.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/tormoder/fit"
)

// Profile is a read-only catalogue of types and messages.
type Profile struct {
	source *artifact

	types      []*Type
	typeByName map[string]*Type
	messages   []*Message
	byNumber   map[uint16]*Message
	byName     map[string]*Message

	mu            sync.Mutex
	unknownMesgs  map[uint16]*Message
	unknownFields map[unknownFieldKey]*Field
}

type unknownFieldKey struct {
	message uint16
	field   byte
	base    byte
}

var log = logrus.WithField("package", "profile")

func newProfile(a *artifact) *Profile {
	return &Profile{
		source:        a,
		typeByName:    make(map[string]*Type),
		byNumber:      make(map[uint16]*Message),
		byName:        make(map[string]*Message),
		unknownMesgs:  make(map[uint16]*Message),
		unknownFields: make(map[unknownFieldKey]*Field),
	}
}

// Type returns the type called name. Base type names resolve too.
func (p *Profile) Type(name string) (*Type, error) {
	t, ok := p.typeByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: no type %q", ErrUnresolved, name)
	}
	return t, nil
}

// BaseType returns the types table entry for a base type.
func (p *Profile) BaseType(b *BaseType) *Type {
	if t, ok := p.typeByName[b.Name]; ok && t.Base == b {
		return t
	}
	return newType(-1, b.Name, b, nil)
}

// Types lists type names in sorted order.
func (p *Profile) Types() []string {
	return sortedTypeNames(p.typeByName)
}

// Messages lists the documented messages in catalogue order.
func (p *Profile) Messages() []*Message {
	out := make([]*Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// MessageByName returns a documented message.
func (p *Profile) MessageByName(name string) (*Message, error) {
	m, ok := p.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: no message %q", ErrUnresolved, name)
	}
	return m, nil
}

// MessageByNumber returns the message for a global message number. Numbers
// missing from the catalogue yield a synthesised message with no fields;
// a warning is logged the first time each one is seen.
func (p *Profile) MessageByNumber(n uint16) *Message {
	if m, ok := p.byNumber[n]; ok {
		return m
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m, ok := p.unknownMesgs[n]; ok {
		return m
	}
	m := &Message{Number: n, Name: p.undocumentedName(n), Unknown: true}
	m.index()
	p.unknownMesgs[n] = m
	log.WithField("message", n).Warnf("undocumented message %s", m.Name)
	return m
}

// FieldOf returns the field n of m, synthesising an unknown field typed by
// base when the catalogue does not document it.
func (p *Profile) FieldOf(m *Message, n byte, base *BaseType) *Field {
	if f, ok := m.FieldByNumber(n); ok {
		return f
	}
	key := unknownFieldKey{message: m.Number, field: n, base: base.Code}
	p.mu.Lock()
	defer p.mu.Unlock()
	if f, ok := p.unknownFields[key]; ok {
		return f
	}
	f := &Field{Number: n, Name: fmt.Sprintf("unknown_%d", n), Type: p.BaseType(base), Unknown: true}
	p.unknownFields[key] = f
	if !m.Unknown {
		log.WithFields(logrus.Fields{"message": m.Name, "field": n}).Warn("undocumented field")
	}
	return f
}

// undocumentedName prefers the mesg_num value name, then the name known to
// the tormoder/fit SDK port, then a number-derived name.
func (p *Profile) undocumentedName(n uint16) string {
	if t, ok := p.typeByName["mesg_num"]; ok {
		if name, ok := t.ValueName(int64(n)); ok {
			return name
		}
	}
	name := fmt.Sprint(fit.MesgNum(n))
	if strings.HasPrefix(name, "MesgNum(") || name == "" {
		return fmt.Sprintf("unknown_%d", n)
	}
	return snakeCase(strings.TrimPrefix(name, "MesgNum"))
}

func snakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ErrInitialized is returned by InitDefault once the default profile is in use.
var ErrInitialized = errors.New("default profile already initialised")

var defaultProfile struct {
	once sync.Once
	p    *Profile
	err  error
	set  bool
	mu   sync.Mutex
}

// InitDefault selects the artifact the default profile is read from. It
// must be called before the first call to Default.
func InitDefault(path string) error {
	defaultProfile.mu.Lock()
	defer defaultProfile.mu.Unlock()
	if defaultProfile.set {
		return ErrInitialized
	}
	p, err := Read(path)
	if err != nil {
		return err
	}
	defaultProfile.once.Do(func() {
		defaultProfile.p = p
	})
	defaultProfile.set = true
	return nil
}

// Default returns the process-wide profile: the artifact chosen with
// InitDefault, otherwise the built-in catalogue.
func Default() *Profile {
	defaultProfile.mu.Lock()
	defer defaultProfile.mu.Unlock()
	defaultProfile.once.Do(func() {
		defaultProfile.p, defaultProfile.err = Builtin()
	})
	defaultProfile.set = true
	if defaultProfile.err != nil {
		panic(fmt.Sprintf("built-in profile: %v", defaultProfile.err))
	}
	return defaultProfile.p
}
