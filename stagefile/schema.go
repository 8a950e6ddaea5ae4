package stagefile

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/helper"
)

type ColumnType string

const (
	TypeBigInt  ColumnType = "BIGINT"
	TypeDouble  ColumnType = "DOUBLE"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeVarchar ColumnType = "VARCHAR"
)

// metadataColumnTypes are fixed regardless of the values seen.
var metadataColumnTypes = map[string]ColumnType{
	constants.ChangeActionColumn:   TypeVarchar,
	constants.ChangeIsUpdateColumn: TypeBoolean,
	constants.ChangeRowIdColumn:    TypeVarchar,
	constants.ChangeSequenceColumn: TypeBigInt,
}

type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Schema is the column layout of a table's staged files.
type Schema struct {
	Columns      []Column  `json:"columns"`
	InferredFrom string    `json:"inferredFrom,omitempty"`
	InferredAt   time.Time `json:"inferredAt"`
}

// ColumnNames returns the column names in file order.
func (s Schema) ColumnNames() []string {
	retval := make([]string, len(s.Columns))
	for idx, c := range s.Columns {
		retval[idx] = c.Name
	}
	return retval
}

// DataColumnNames returns the column names excluding change metadata.
func (s Schema) DataColumnNames() []string {
	retval := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !IsMetadataColumn(c.Name) {
			retval = append(retval, c.Name)
		}
	}
	return retval
}

func (s Schema) HasColumn(name string) bool {
	for _, c := range s.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// IsMetadataColumn returns true for the change columns added by the source stream and export task.
func IsMetadataColumn(name string) bool {
	_, ok := metadataColumnTypes[name]
	return ok
}

// CheckHeader returns an error if header does not match the schema's columns exactly.
func (s Schema) CheckHeader(header []string) error {
	if len(header) != len(s.Columns) {
		return errors.Errorf("expected %v columns %v; got %v columns %v", len(s.Columns), s.ColumnNames(), len(header), header)
	}
	for idx, c := range s.Columns {
		if header[idx] != c.Name {
			return errors.Errorf("column %v: expected %q; got %q", idx+1, c.Name, header[idx])
		}
	}
	return nil
}

// ValidateMergeKeys returns an error if any key is missing from the schema.
func (s Schema) ValidateMergeKeys(keys []string) error {
	var missing []string
	for _, k := range keys {
		if !s.HasColumn(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return errors.Errorf("merge keys %v not found in columns %v", missing, s.ColumnNames())
	}
	return nil
}

// InferSchema derives a schema from the header and sample rows of a staged file.
// Metadata columns have fixed types and data columns take their type from f.ColumnTypes.
// Other data columns are VARCHAR unless f.InferColumnTypes is set, in which case each
// gets the narrowest type that every non-null value parses as.
func InferSchema(header []string, rows [][]string, f Format) Schema {
	cols := make([]Column, len(header))
	for idx, name := range header {
		if t, ok := metadataColumnTypes[name]; ok {
			cols[idx] = Column{Name: name, Type: t}
			continue
		}
		if t, ok := f.ColumnTypes[name]; ok {
			cols[idx] = Column{Name: name, Type: t}
			continue
		}
		if !f.InferColumnTypes {
			cols[idx] = Column{Name: name, Type: TypeVarchar}
			continue
		}
		var t ColumnType
		for _, row := range rows {
			if idx >= len(row) || f.IsNull(row[idx]) {
				continue
			}
			t = widen(t, detectType(row[idx]))
		}
		if t == "" {
			t = TypeVarchar
		}
		cols[idx] = Column{Name: name, Type: t}
	}
	return Schema{Columns: cols}
}

func detectType(v string) ColumnType {
	if _, err := strconv.ParseInt(v, 10, 64); err == nil {
		return TypeBigInt
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return TypeDouble
	}
	switch strings.ToUpper(v) {
	case "TRUE", "FALSE":
		return TypeBoolean
	}
	return TypeVarchar
}

func widen(current, seen ColumnType) ColumnType {
	switch {
	case current == "" || current == seen:
		return seen
	case (current == TypeBigInt && seen == TypeDouble) || (current == TypeDouble && seen == TypeBigInt):
		return TypeDouble
	default:
		return TypeVarchar
	}
}

// ConvertValue parses raw into the Go type for t. Null values are nil.
func ConvertValue(raw string, t ColumnType, f Format) (interface{}, error) {
	if f.IsNull(raw) {
		return nil, nil
	}
	switch t {
	case TypeBigInt:
		return strconv.ParseInt(raw, 10, 64)
	case TypeDouble:
		return strconv.ParseFloat(raw, 64)
	case TypeBoolean:
		return helper.GetTrueFalseStringAsBool(raw), nil
	default:
		return raw, nil
	}
}

// MarshalSchema encodes s for persistence at a table's schema path.
func MarshalSchema(s Schema) ([]byte, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling schema")
	}
	return b, nil
}

func UnmarshalSchema(b []byte) (Schema, error) {
	s := Schema{}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, errors.Wrap(err, "error unmarshalling schema")
	}
	if len(s.Columns) == 0 {
		return s, errors.New("schema has no columns")
	}
	return s, nil
}
