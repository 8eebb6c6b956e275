package export

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/profile"
)

// Bundle is the in-memory form of an export: header checks and one line
// per token.
type Bundle struct {
	Header          HeaderInfo
	HeaderCRC       CRCCheck
	FileCRC         CRCCheck
	Records         []RecordLine
	TokenCount      int
	DefinitionCount int
	DataRecordCount int
	DecodeErrors    int
	LeftoverBytes   int64
	FileID          *FileIDInfo
	SourceSHA256    string
	SourceSizeBytes int64
}

// Parse reads data into a bundle. Checksum mismatches are reported in the
// bundle rather than failing the read; a record that cannot be decoded
// keeps its raw bytes and carries the decode error.
func Parse(data []byte, opts Options) (*Bundle, error) {
	h, err := fitstream.ReadHeader(data)
	if err != nil {
		return nil, fmt.Errorf("parse fit bytes: %w", err)
	}
	sum := sha256.Sum256(data)
	b := &Bundle{
		Header: HeaderInfo{
			Size:            h.Size,
			ProtocolVersion: h.ProtocolVersion,
			ProfileVersion:  h.ProfileVersion,
			DataSize:        h.DataSize,
			DataType:        h.DataType,
		},
		HeaderCRC:       headerCRC(h, data),
		FileCRC:         fileCRC(data),
		SourceSHA256:    hex.EncodeToString(sum[:]),
		SourceSizeBytes: int64(len(data)),
	}
	if declared := int(h.Size) + int(h.DataSize) + fitstream.ChecksumSize; len(data) > declared {
		b.LeftoverBytes = int64(len(data) - declared)
	}

	log := opts.logger()
	tokens := fitstream.NewTokens(data, fitstream.Options{
		Warn:            opts.Warn,
		IgnoreChecksums: true,
		Profile:         opts.Profile,
		Logger:          log,
	})
	for {
		tok, err := tokens.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse fit bytes: %w", err)
		}
		b.add(tok, opts)
	}
	log.WithFields(logrus.Fields{
		"tokens":        b.TokenCount,
		"records":       b.DataRecordCount,
		"decode_errors": b.DecodeErrors,
	}).Debug("parsed export bundle")
	return b, nil
}

func (b *Bundle) add(tok fitstream.Token, opts Options) {
	line := RecordLine{
		FormatVersion: FormatVersion,
		Index:         len(b.Records),
		Offset:        tok.Offset(),
		Kind:          tok.Kind().String(),
		RawHex:        hex.EncodeToString(tok.Bytes()),
		Fields:        []FieldValue{},
	}
	b.TokenCount++

	var def *fitstream.Definition
	switch t := tok.(type) {
	case *fitstream.DefinitionMessage:
		def = t.Definition
		b.DefinitionCount++
	case *fitstream.DataMessage:
		def = t.Definition
		b.DataRecordCount++
	}
	if def != nil {
		global, local := def.Global, def.Local
		line.MessageNumber, line.Local = &global, &local
		line.Message = def.Message.Name
	}

	rec, err := tok.Parse(opts.Warn)
	if err != nil {
		b.DecodeErrors++
		line.DecodeError = err.Error()
		if dm, ok := tok.(*fitstream.DataMessage); ok {
			if ts, ok := dm.Record().Timestamp(); ok {
				line.Timestamp = ts.Format(time.RFC3339)
			}
		}
		b.Records = append(b.Records, line)
		return
	}
	if def == nil {
		line.Message = rec.Name
	}
	if ts, ok := rec.Timestamp(); ok {
		line.Timestamp = ts.Format(time.RFC3339)
	}
	for _, f := range rec.View(opts.View).Fields() {
		line.Fields = append(line.Fields, FieldValue{Name: f.Name, Units: f.Units, Value: jsonValue(f.Value())})
	}
	if rec.Name == "file_id" && b.FileID == nil {
		b.FileID = projectFileID(rec)
	}
	b.Records = append(b.Records, line)
}

func headerCRC(h fitstream.Header, data []byte) CRCCheck {
	c := CRCCheck{
		Present:         h.Size == fitstream.HeaderSize,
		ValidationStyle: "fit_header_crc16",
		Valid:           true,
	}
	if !c.Present {
		return c
	}
	c.StoredHex = fmt.Sprintf("0x%04X", h.CRC)
	if h.HasCRC() {
		c.ComputedHex = fmt.Sprintf("0x%04X", fitstream.CRC(data[:fitstream.ShortHeaderSize]))
		c.Valid = h.CheckCRC(data) == nil
	}
	return c
}

func fileCRC(data []byte) CRCCheck {
	c := CRCCheck{ValidationStyle: "header_plus_data_checksum_equals_stored_crc"}
	stored, ok := fitstream.StoredChecksum(data)
	if !ok {
		return c
	}
	computed := fitstream.CRC(data[:len(data)-fitstream.ChecksumSize])
	c.Present = true
	c.StoredHex = fmt.Sprintf("0x%04X", stored)
	c.ComputedHex = fmt.Sprintf("0x%04X", computed)
	c.Valid = stored == computed
	return c
}

// jsonValue makes view values encodable: invalid markers keep their raw
// value, times become RFC 3339 strings and non-finite floats become null.
func jsonValue(v any) any {
	switch x := v.(type) {
	case profile.Invalid:
		return map[string]any{"invalid": jsonValue(x.Raw)}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = jsonValue(x[i])
		}
		return out
	default:
		return v
	}
}

func projectFileID(rec *fitstream.Record) *FileIDInfo {
	names := rec.Names()
	info := &FileIDInfo{}
	text := func(name string) string {
		f, ok := names.Get(name)
		if !ok || f.Value() == nil {
			return ""
		}
		return fmt.Sprint(f.Value())
	}
	info.Type = text("type")
	info.Manufacturer = text("manufacturer")
	for _, name := range []string{"garmin_product", "product"} {
		if p := text(name); p != "" {
			info.Product = p
			break
		}
	}
	if f, ok := names.Get("time_created"); ok {
		if t, ok := f.Value().(time.Time); ok {
			info.TimeCreated = t.UTC().Format(time.RFC3339)
		}
	}
	if f, ok := rec.Get("serial_number"); ok {
		if n, ok := f.Value().(uint64); ok {
			info.SerialNumber = n
		}
	}
	return info
}

// Warnings returns deterministic parse-quality notes for a bundle.
func Warnings(b *Bundle) []string {
	if b == nil {
		return nil
	}
	var out []string
	if b.HeaderCRC.Present && !b.HeaderCRC.Valid {
		out = append(out, "header CRC mismatch")
	}
	if b.FileCRC.Present && !b.FileCRC.Valid {
		out = append(out, "file CRC mismatch")
	}
	if b.LeftoverBytes > 0 {
		out = append(out, fmt.Sprintf("leftover trailing bytes detected: %d", b.LeftoverBytes))
	}
	seen := make(map[string]struct{})
	for _, rec := range b.Records {
		msg := strings.TrimSpace(rec.DecodeError)
		if msg == "" {
			continue
		}
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		out = append(out, msg)
	}
	return out
}

// MarshalJSONL renders record lines as JSONL bytes.
func MarshalJSONL(records []RecordLine) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSONL(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSONL(w io.Writer, records []RecordLine) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.WithField("package", "export")
}
