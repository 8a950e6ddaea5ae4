package stagefile

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/stream"
)

// Reader decodes one staged file.
type Reader struct {
	format  Format
	csv     *csv.Reader
	header  []string
	closers []func() error
}

// NewReader reads the header of the staged file in r.
// The file is decompressed according to compression, which is one of the constants.Compression* values.
func NewReader(r io.Reader, f Format, compression string) (*Reader, error) {
	f = f.WithDefaults()
	rdr := &Reader{format: f}
	switch strings.ToUpper(compression) {
	case constants.CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "error opening gzip stream")
		}
		rdr.closers = append(rdr.closers, gz.Close)
		r = gz
	case constants.CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(err, "error opening zstd stream")
		}
		rdr.closers = append(rdr.closers, func() error { zr.Close(); return nil })
		r = zr
	case constants.CompressionNone, "":
	default:
		return nil, errors.Errorf("unsupported compression %q", compression)
	}
	rdr.csv = csv.NewReader(r)
	rdr.csv.Comma = []rune(f.Delimiter)[0]
	header, err := rdr.csv.Read()
	if err == io.EOF {
		_ = rdr.Close()
		return nil, errors.New("staged file is empty: no header row")
	}
	if err != nil {
		_ = rdr.Close()
		return nil, errors.Wrap(err, "error reading header row")
	}
	rdr.header = header
	rdr.csv.FieldsPerRecord = len(header)
	return rdr, nil
}

// Header returns the column names from the first line of the file.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// ReadRaw returns the next row as strings, or io.EOF.
func (r *Reader) ReadRaw() ([]string, error) {
	return r.csv.Read()
}

// ReadAllRaw returns all remaining rows as strings.
func (r *Reader) ReadAllRaw() ([][]string, error) {
	rows, err := r.csv.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "error reading rows")
	}
	return rows, nil
}

// ReadRecords converts all remaining rows into records typed by schema.
func (r *Reader) ReadRecords(s Schema) ([]stream.Record, error) {
	if err := s.CheckHeader(r.header); err != nil {
		return nil, err
	}
	var retval []stream.Record
	for line := 2; ; line++ {
		row, err := r.csv.Read()
		if err == io.EOF {
			return retval, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "error reading line %v", line)
		}
		rec, err := ToRecord(row, s, r.format)
		if err != nil {
			return nil, errors.Wrapf(err, "line %v", line)
		}
		retval = append(retval, rec)
	}
}

func (r *Reader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ToRecord converts a raw row into a record using the column types in s.
func ToRecord(row []string, s Schema, f Format) (stream.Record, error) {
	rec := stream.NewRecord()
	for idx, c := range s.Columns {
		v, err := ConvertValue(row[idx], c.Type, f)
		if err != nil {
			return stream.Record{}, errors.Wrapf(err, "column %v (%v)", c.Name, c.Type)
		}
		rec.SetData(c.Name, v)
	}
	return rec, nil
}
