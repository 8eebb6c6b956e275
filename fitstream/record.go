package fitstream

import (
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/profile"
)

// View selects how field values are presented.
type View uint8

const (
	// ViewRaw keeps elements exactly as read, invalid sentinels included,
	// without scaling.
	ViewRaw View = iota
	// ViewValue drops invalid elements and applies scale and offset.
	ViewValue
	// ViewNames is ViewValue with enum values replaced by their names and
	// date_time values converted to time.Time.
	ViewNames
	numViews
)

func (v View) String() string {
	switch v {
	case ViewRaw:
		return "raw"
	case ViewNames:
		return "names"
	default:
		return "value"
	}
}

// Field is one named entry of a record view.
type Field struct {
	Name   string
	Units  string
	Values []any
}

// Value returns the only element of a scalar field, or all elements of an
// array field.
func (f Field) Value() any {
	switch len(f.Values) {
	case 0:
		return nil
	case 1:
		return f.Values[0]
	default:
		return f.Values
	}
}

// RecordView is an ordered set of fields.
type RecordView struct {
	fields []Field
	index  map[string]int
}

func newRecordView(capacity int) *RecordView {
	return &RecordView{fields: make([]Field, 0, capacity), index: make(map[string]int, capacity)}
}

// Fields returns the fields in record order.
func (v *RecordView) Fields() []Field {
	if v == nil {
		return nil
	}
	return v.fields
}

// Get returns the field called name.
func (v *RecordView) Get(name string) (Field, bool) {
	if v == nil {
		return Field{}, false
	}
	i, ok := v.index[name]
	if !ok {
		return Field{}, false
	}
	return v.fields[i], true
}

// Len is the number of fields.
func (v *RecordView) Len() int {
	if v == nil {
		return 0
	}
	return len(v.fields)
}

// AsMap returns the view as an ordered name to value mapping.
func (v *RecordView) AsMap() *orderedmap.OrderedMap[string, any] {
	m := orderedmap.NewOrderedMapWithCapacity[string, any](v.Len())
	for _, f := range v.Fields() {
		m.Set(f.Name, f.Value())
	}
	return m
}

// Record is a decoded token. Records of data messages keep their raw
// values and build views the first time one is requested.
type Record struct {
	Kind       Kind
	Offset     int
	Name       string
	Number     uint16
	Message    *profile.Message
	Definition *Definition

	timestamp    uint32
	hasTimestamp bool

	raw        [][]any
	dev        [][]any
	desc       []fieldDesc
	totals     map[int][]uint64
	compTotals map[componentKey]uint64

	warn bool
	log  logrus.FieldLogger

	forced     bool
	forcedWarn bool
	err        error
	views      [numViews]*RecordView
}

type componentKey struct {
	field     int
	component int
}

func fixedRecord(kind Kind, offset int, name string, fields []Field) *Record {
	view := newRecordView(len(fields))
	for _, f := range fields {
		view.index[f.Name] = len(view.fields)
		view.fields = append(view.fields, f)
	}
	r := &Record{Kind: kind, Offset: offset, Name: name, forced: true}
	for i := range r.views {
		r.views[i] = view
	}
	return r
}

// Force builds the views of the record. It is idempotent; the first
// error is returned again on later calls unless warnings were enabled
// since.
func (r *Record) Force() error {
	if r.forced && (r.err == nil || r.forcedWarn == r.warn) {
		return r.err
	}
	r.forced, r.forcedWarn = true, r.warn
	r.err = r.decode()
	return r.err
}

// Err returns the decode error of a forced record.
func (r *Record) Err() error {
	return r.err
}

// View returns the record in view v. Records that fail to decode have
// empty views; see Err.
func (r *Record) View(v View) *RecordView {
	if r.Force() != nil || v >= numViews {
		return newRecordView(0)
	}
	return r.views[v]
}

// Raw returns the raw view.
func (r *Record) Raw() *RecordView { return r.View(ViewRaw) }

// Values returns the value view.
func (r *Record) Values() *RecordView { return r.View(ViewValue) }

// Names returns the names view.
func (r *Record) Names() *RecordView { return r.View(ViewNames) }

// Get returns the field called name from the value view.
func (r *Record) Get(name string) (Field, bool) {
	return r.Values().Get(name)
}

// AsMap returns view v as an ordered name to value mapping.
func (r *Record) AsMap(v View) *orderedmap.OrderedMap[string, any] {
	return r.View(v).AsMap()
}

// RawTimestamp returns the record's timestamp in FIT seconds, either from
// its timestamp field or expanded from a compressed header.
func (r *Record) RawTimestamp() (uint32, bool) {
	return r.timestamp, r.hasTimestamp
}

// Timestamp returns the record's timestamp as a time.
func (r *Record) Timestamp() (time.Time, bool) {
	if !r.hasTimestamp {
		return time.Time{}, false
	}
	return Time(r.timestamp), true
}
