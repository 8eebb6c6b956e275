package export

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucasjlepore/fitcodec/fitstream"
	"github.com/lucasjlepore/fitcodec/profile"
)

const (
	// FormatVersion identifies the on-disk schema of export bundles.
	FormatVersion = "fitcodec_jsonl_v1"

	ManifestName = "manifest.json"
	RecordsName  = "records.jsonl"
	ParquetName  = "records.parquet"
	SourceName   = "source.fit"
)

// Format selects how records are written.
type Format string

const (
	FormatJSONL   Format = "jsonl"
	FormatParquet Format = "parquet"
)

// Options controls export behavior.
type Options struct {
	Format Format
	// View selects the record view written for data messages.
	View fitstream.View
	// Warn drops undecodable fields with a warning instead of leaving the
	// record without fields.
	Warn bool

	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool
	// CopySourceFile writes a byte-for-byte copy of the source FIT file to
	// the output directory.
	CopySourceFile bool

	Profile *profile.Profile
	Logger  logrus.FieldLogger
}

// Result describes generated files.
type Result struct {
	OutputDir       string `json:"output_dir"`
	ManifestPath    string `json:"manifest_path"`
	RecordsPath     string `json:"records_path"`
	SourceCopyPath  string `json:"source_copy_path,omitempty"`
	TokenCount      int    `json:"token_count"`
	DefinitionCount int    `json:"definition_count"`
	DataRecordCount int    `json:"data_record_count"`
	SourceSHA256    string `json:"source_sha256"`
	SourceSizeBytes int64  `json:"source_size_bytes"`
	FileCRCValid    bool   `json:"file_crc_valid"`
	HeaderCRCValid  bool   `json:"header_crc_valid"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion   string        `json:"format_version"`
	GeneratedAt     time.Time     `json:"generated_at"`
	SourceFile      string        `json:"source_file"`
	SourceFileName  string        `json:"source_file_name"`
	SourceSHA256    string        `json:"source_sha256"`
	SourceSizeBytes int64         `json:"source_size_bytes"`
	Header          HeaderInfo    `json:"header"`
	HeaderCRC       CRCCheck      `json:"header_crc"`
	FileCRC         CRCCheck      `json:"file_crc"`
	RecordsPath     string        `json:"records_path"`
	RecordsFormat   Format        `json:"records_format"`
	View            string        `json:"view"`
	TokenCount      int           `json:"token_count"`
	DefinitionCount int           `json:"definition_count"`
	DataRecordCount int           `json:"data_record_count"`
	DecodeErrors    int           `json:"decode_errors"`
	LeftoverBytes   int64         `json:"leftover_bytes"`
	FileID          *FileIDInfo   `json:"file_id_projection,omitempty"`
	Warnings        []string      `json:"warnings,omitempty"`
	Schema          SchemaDetails `json:"schema_description"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

type HeaderInfo struct {
	Size            uint8  `json:"size"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ProfileVersion  uint16 `json:"profile_version"`
	DataSize        uint32 `json:"data_size"`
	DataType        string `json:"data_type"`
}

// CRCCheck describes CRC validation results.
type CRCCheck struct {
	Present         bool   `json:"present"`
	StoredHex       string `json:"stored_hex,omitempty"`
	ComputedHex     string `json:"computed_hex,omitempty"`
	Valid           bool   `json:"valid"`
	ValidationStyle string `json:"validation_style"`
}

// FileIDInfo is a convenience projection from the file_id message.
type FileIDInfo struct {
	Type         string `json:"type,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Product      string `json:"product,omitempty"`
	TimeCreated  string `json:"time_created,omitempty"`
	SerialNumber uint64 `json:"serial_number,omitempty"`
}

// RecordLine is one JSONL line in records.jsonl. Lines follow token
// order: the header, definition and data messages, then the checksum.
type RecordLine struct {
	FormatVersion string       `json:"format_version"`
	Index         int          `json:"record_index"`
	Offset        int          `json:"file_offset"`
	Kind          string       `json:"record_kind"`
	Message       string       `json:"message"`
	MessageNumber *uint16      `json:"global_message_num,omitempty"`
	Local         *uint8       `json:"local_message_type,omitempty"`
	Timestamp     string       `json:"timestamp_utc,omitempty"`
	Fields        []FieldValue `json:"fields"`
	RawHex        string       `json:"raw_record_hex"`
	DecodeError   string       `json:"decode_error,omitempty"`
}

// FieldValue is one decoded field. Value is a scalar for single element
// fields and a list otherwise.
type FieldValue struct {
	Name  string `json:"name"`
	Units string `json:"units,omitempty"`
	Value any    `json:"value"`
}
