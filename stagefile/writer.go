package stagefile

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
)

// WriteFile writes a staged file with a header row in the layout the export task produces.
func WriteFile(w io.Writer, f Format, header []string, rows [][]string) error {
	f = f.WithDefaults()
	var closer io.Closer
	switch strings.ToUpper(f.Compression) {
	case constants.CompressionGzip:
		gz := gzip.NewWriter(w)
		closer = gz
		w = gz
	case constants.CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return errors.Wrap(err, "error opening zstd stream")
		}
		closer = enc
		w = enc
	}
	c := csv.NewWriter(w)
	c.Comma = []rune(f.Delimiter)[0]
	if err := c.Write(header); err != nil {
		return errors.Wrap(err, "error writing header")
	}
	if err := c.WriteAll(rows); err != nil {
		return errors.Wrap(err, "error writing rows")
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}
