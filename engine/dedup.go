package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/relloyd/cdcpipe/constants"
	"github.com/relloyd/cdcpipe/destination"
	"github.com/relloyd/cdcpipe/stream"
)

type candidate struct {
	record  stream.Record
	seq     int64
	rank    int
	arrival int
	delete  bool
}

// outranks orders candidates by (ordering value, action rank, arrival index).
func (c candidate) outranks(o candidate) bool {
	if c.seq != o.seq {
		return c.seq > o.seq
	}
	if c.rank != o.rank {
		return c.rank > o.rank
	}
	return c.arrival > o.arrival
}

// Dedupe keeps one change per merge key tuple: the row with the greatest ordering value.
// For equal ordering values an insert beats a delete, so the two halves of an update become an upsert.
// Changes are returned in the arrival order of the winning rows.
func Dedupe(records []stream.Record, keys []string) ([]destination.Change, error) {
	best := make(map[string]candidate, len(records))
	for idx, r := range records {
		for _, k := range keys {
			if _, ok := r.Lookup(k); !ok {
				return nil, fmt.Errorf("row %v is missing merge key %q", idx, k)
			}
		}
		tuple, err := r.GetJson(keys)
		if err != nil {
			return nil, err
		}
		c, err := newCandidate(r, idx)
		if err != nil {
			return nil, fmt.Errorf("row %v: %w", idx, err)
		}
		if cur, ok := best[tuple]; !ok || c.outranks(cur) {
			best[tuple] = c
		}
	}
	winners := make([]candidate, 0, len(best))
	for _, c := range best {
		winners = append(winners, c)
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].arrival < winners[j].arrival })
	retval := make([]destination.Change, len(winners))
	for idx, c := range winners {
		retval[idx] = destination.Change{Record: c.record, Delete: c.delete}
	}
	return retval, nil
}

func newCandidate(r stream.Record, arrival int) (candidate, error) {
	c := candidate{record: r, arrival: arrival}
	action, err := r.GetDataAsString(constants.ChangeActionColumn)
	if err != nil {
		return c, err
	}
	switch strings.ToUpper(action) {
	case constants.ChangeActionInsert:
		c.rank = 1
	case constants.ChangeActionDelete:
		c.delete = true
	default:
		return c, fmt.Errorf("unexpected %v value %q", constants.ChangeActionColumn, action)
	}
	c.seq, err = orderingValue(r.GetData(constants.ChangeSequenceColumn))
	return c, err
}

func orderingValue(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %v value %v (%T)", constants.ChangeSequenceColumn, v, v)
	}
}
