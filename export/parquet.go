package export

import (
	"fmt"
	"math"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// fieldRow is one (record, field) pair of a data message.
type fieldRow struct {
	RecordIndex   int64   `parquet:"name=record_index, type=INT64"`
	FileOffset    int64   `parquet:"name=file_offset, type=INT64"`
	Message       string  `parquet:"name=message, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	MessageNumber int32   `parquet:"name=global_message_num, type=INT32"`
	TimestampUTC  string  `parquet:"name=timestamp_utc, type=BYTE_ARRAY, convertedtype=UTF8"`
	Field         string  `parquet:"name=field, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Units         string  `parquet:"name=units, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Element       int32   `parquet:"name=element, type=INT32"`
	Number        float64 `parquet:"name=value_num, type=DOUBLE"`
	Text          string  `parquet:"name=value_text, type=BYTE_ARRAY, convertedtype=UTF8"`
	Valid         bool    `parquet:"name=valid, type=BOOLEAN"`
}

// fieldRows flattens the data lines of a bundle. Array fields give one
// row per element; value_num is NaN where the element is not numeric.
func fieldRows(records []RecordLine) []fieldRow {
	var rows []fieldRow
	for _, rec := range records {
		if rec.MessageNumber == nil || rec.Kind == "definition" {
			continue
		}
		for _, f := range rec.Fields {
			elems, ok := f.Value.([]any)
			if !ok {
				elems = []any{f.Value}
			}
			for i, v := range elems {
				row := fieldRow{
					RecordIndex:   int64(rec.Index),
					FileOffset:    int64(rec.Offset),
					Message:       rec.Message,
					MessageNumber: int32(*rec.MessageNumber),
					TimestampUTC:  rec.Timestamp,
					Field:         f.Name,
					Units:         f.Units,
					Element:       int32(i),
					Number:        math.NaN(),
					Valid:         true,
				}
				switch x := v.(type) {
				case nil:
					row.Valid = false
				case map[string]any:
					row.Valid = false
					row.Text = fmt.Sprint(x["invalid"])
				case string:
					row.Text = x
				default:
					if n, ok := number(x); ok {
						row.Number = n
					}
					row.Text = fmt.Sprint(x)
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case uint64:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// MarshalParquet renders the data lines of a bundle as a Parquet file.
func MarshalParquet(records []RecordLine) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(fieldRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range fieldRows(records) {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
