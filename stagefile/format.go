package stagefile

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
)

// Format describes how staged files are written by the export task and how they are read back.
type Format struct {
	Delimiter   string   `json:"delimiter,omitempty"`
	Compression string   `json:"compression,omitempty"`
	NullIf      []string `json:"nullIf,omitempty"`
	// InferColumnTypes enables narrowing data columns to BIGINT, DOUBLE or BOOLEAN from the first file's values.
	// When false every data column without an entry in ColumnTypes is VARCHAR.
	InferColumnTypes bool `json:"inferColumnTypes,omitempty"`
	// ColumnTypes pins the destination type of named data columns.
	ColumnTypes map[string]ColumnType `json:"columnTypes,omitempty"`
}

// DefaultFormat is a comma separated, gzip compressed CSV with \N read as NULL.
// Empty fields are empty strings.
func DefaultFormat() Format {
	return Format{
		Delimiter:   constants.FileFormatDelimiterDefault,
		Compression: constants.CompressionGzip,
		NullIf:      []string{constants.FileFormatNullTokenDefault},
	}
}

// WithDefaults fills unset fields from DefaultFormat.
func (f Format) WithDefaults() Format {
	d := DefaultFormat()
	if f.Delimiter == "" {
		f.Delimiter = d.Delimiter
	}
	if f.Compression == "" {
		f.Compression = d.Compression
	}
	f.Compression = strings.ToUpper(f.Compression)
	if f.NullIf == nil {
		f.NullIf = d.NullIf
	}
	if f.ColumnTypes != nil {
		types := make(map[string]ColumnType, len(f.ColumnTypes))
		for name, t := range f.ColumnTypes {
			types[name] = ColumnType(strings.ToUpper(string(t)))
		}
		f.ColumnTypes = types
	}
	return f
}

func (f Format) Validate() error {
	if len([]rune(f.Delimiter)) != 1 {
		return errors.Errorf("file format delimiter must be a single character; got %q", f.Delimiter)
	}
	switch strings.ToUpper(f.Compression) {
	case constants.CompressionNone, constants.CompressionGzip, constants.CompressionZstd:
	default:
		return errors.Errorf("unsupported file format compression %q", f.Compression)
	}
	for name, t := range f.ColumnTypes {
		switch t {
		case TypeBigInt, TypeDouble, TypeBoolean, TypeVarchar:
		default:
			return errors.Errorf("unsupported type %q for column %v", t, name)
		}
	}
	return nil
}

// IsNull returns true if the raw field value should be read as NULL.
func (f Format) IsNull(v string) bool {
	for _, n := range f.NullIf {
		if v == n {
			return true
		}
	}
	return false
}

// FileExtension returns the suffix the source warehouse adds to exported files.
func (f Format) FileExtension() string {
	switch strings.ToUpper(f.Compression) {
	case constants.CompressionGzip:
		return ".csv.gz"
	case constants.CompressionZstd:
		return ".csv.zst"
	default:
		return ".csv"
	}
}

// DetectCompression guesses the compression of a staged file from its key, falling back to def.
func DetectCompression(key string, def string) string {
	switch {
	case strings.HasSuffix(key, ".gz"):
		return constants.CompressionGzip
	case strings.HasSuffix(key, ".zst"):
		return constants.CompressionZstd
	case strings.HasSuffix(key, ".csv"):
		return constants.CompressionNone
	}
	return def
}
