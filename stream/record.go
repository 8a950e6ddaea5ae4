package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	h "github.com/relloyd/cdcpipe/helper"
)

// NewRecord creates a new Record and returns it by value.
func NewRecord() Record {
	return Record{
		data: make(map[string]interface{}),
	}
}

func NewNilRecord() Record {
	return Record{}
}

func (sr Record) RecordIsNil() bool {
	return sr.data == nil
}

// Record is one row read from a staged file.
type Record struct {
	data map[string]interface{} // raw data values, which can represent null database values as nil interfaces.
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

// GetData returns the value of field name, or nil if it does not exist.
func (sr Record) GetData(name string) interface{} {
	return sr.data[name]
}

// Lookup returns the value of field name and whether it exists.
func (sr Record) Lookup(name string) (interface{}, bool) {
	v, ok := sr.data[name]
	return v, ok
}

func (sr Record) GetDataMap() map[string]interface{} {
	return sr.data
}

func (sr Record) GetDataLen() int {
	return len(sr.data)
}

// GetDataAsString will convert the value of field name to a string.
// Times are converted to UTC.
func (sr Record) GetDataAsString(name string) (string, error) {
	v, ok := sr.data[name]
	if !ok {
		return "", fmt.Errorf("field %q does not exist in the record", name)
	}
	return h.GetStringFromInterface(v)
}

// GetDataKeysAsSlice builds a slice of strings containing the values found in sr.data for each of the supplied
// keys in slice keys.
func (sr Record) GetDataKeysAsSlice(keys []string) ([]string, error) {
	retval := make([]string, 0, len(keys))
	for _, k := range keys {
		s, err := sr.GetDataAsString(k)
		if err != nil {
			return nil, err
		}
		retval = append(retval, s)
	}
	return retval, nil
}

// GetValues returns the values for cols in the order supplied. Missing fields are nil.
func (sr Record) GetValues(cols []string) []interface{} {
	retval := make([]interface{}, len(cols))
	for idx, c := range cols {
		retval[idx] = sr.data[c]
	}
	return retval
}

// GetSortedDataMapKeys will return a slice of the keys found in map sr.data.
func (sr Record) GetSortedDataMapKeys() []string {
	retval := make([]string, 0, len(sr.data))
	for k := range sr.data {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

func (sr Record) CopyTo(t Record) {
	for k, v := range sr.data {
		t.SetData(k, v)
	}
}

// GetJson returns the JSON representation of sr.data using the supplied keys to fetch the data.
func (sr Record) GetJson(keys []string) (string, error) {
	out := make([]string, len(keys))
	for idx, key := range keys { // for each key...
		jsonValue, err := json.Marshal(sr.data[key])
		if err != nil {
			return "", fmt.Errorf("error marshalling the value of key %q to JSON: %w", key, err)
		}
		k, _ := json.Marshal(key)
		out[idx] = fmt.Sprintf("%s: %s", k, jsonValue)
	}
	return fmt.Sprintf("{%v}", strings.Join(out, ", ")), nil
}
