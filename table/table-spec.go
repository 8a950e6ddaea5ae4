package table

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/helper"
)

// Mode is the replication mode of a table stream.
type Mode string

const (
	ModeAppend Mode = "append"
	ModeMerge  Mode = "merge"
)

// ConfigurationError is returned when a table is not set up for the operation requested.
type ConfigurationError struct {
	Table  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("table %v: %v", e.Table, e.Reason)
}

// Identity uniquely identifies a source table.
type Identity struct {
	Database string
	Schema   string
	Table    string
}

func (i Identity) String() string {
	return strings.Join([]string{i.Database, i.Schema, i.Table}, ".")
}

// Spec describes one source table and how changes to it are applied.
// Fields are fixed at construction.
type Spec struct {
	database  string
	schema    string
	tableName string
	mergeKeys []string
}

// NewSpec builds a Spec. An empty mergeKeys means the table can only be streamed in append mode.
func NewSpec(database, schema, tableName string, mergeKeys []string) (Spec, error) {
	if database == "" || schema == "" || tableName == "" {
		return Spec{}, &ConfigurationError{
			Table:  strings.Join([]string{database, schema, tableName}, "."),
			Reason: "database, schema and table name are required",
		}
	}
	keys := make([]string, 0, len(mergeKeys))
	for _, k := range mergeKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return Spec{database: database, schema: schema, tableName: tableName, mergeKeys: keys}, nil
}

// Parse builds a Spec from "database.schema.table".
// Parts may be double quoted in which case they can contain dots.
func Parse(s string, mergeKeys []string) (Spec, error) {
	parts, err := splitIdentifier(s)
	if err != nil {
		return Spec{}, err
	}
	if len(parts) != 3 {
		return Spec{}, &ConfigurationError{Table: s, Reason: "expected <database>.<schema>.<table>"}
	}
	return NewSpec(parts[0], parts[1], parts[2], mergeKeys)
}

func splitIdentifier(s string) ([]string, error) {
	var parts []string
	b := strings.Builder{}
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == '.' && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, errors.Errorf("unterminated quote in identifier %q", s)
	}
	parts = append(parts, b.String())
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, &ConfigurationError{Table: s, Reason: "empty identifier part"}
		}
	}
	return parts, nil
}

func (s Spec) Database() string { return s.database }

func (s Spec) Schema() string { return s.schema }

func (s Spec) TableName() string { return s.tableName }

// MergeKeys returns a copy of the merge key columns.
func (s Spec) MergeKeys() []string {
	return append([]string(nil), s.mergeKeys...)
}

func (s Spec) Identity() Identity {
	return Identity{Database: s.database, Schema: s.schema, Table: s.tableName}
}

// FullyQualifiedName returns database.schema.table with case preserved.
func (s Spec) FullyQualifiedName() string {
	return s.Identity().String()
}

// Mode returns ModeMerge when merge keys are present.
func (s Spec) Mode() Mode {
	if len(s.mergeKeys) > 0 {
		return ModeMerge
	}
	return ModeAppend
}

// RequireMergeKeys returns a ConfigurationError if the table has no merge keys.
func (s Spec) RequireMergeKeys() error {
	if len(s.mergeKeys) == 0 {
		return &ConfigurationError{Table: s.FullyQualifiedName(), Reason: "merge mode requires at least one merge key"}
	}
	return nil
}

// MergeKeysString returns the merge keys as a CSV.
func (s Spec) MergeKeysString() string {
	return strings.Join(s.mergeKeys, ",")
}

// JoinCondition returns "k1 = src.k1 AND k2 = src.k2" in merge key order.
func (s Spec) JoinCondition() string {
	return s.QualifiedJoinCondition("")
}

// QualifiedJoinCondition is JoinCondition with the target columns prefixed by alias.
func (s Spec) QualifiedJoinCondition(alias string) string {
	return helper.GenerateStringOfColsEqualsCols(s.mergeKeys, alias, constants.MergeSourceAlias, " AND ")
}

func (s Spec) String() string {
	return s.FullyQualifiedName()
}
