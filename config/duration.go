package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration reads "90s" style strings or a plain number of seconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		d.Duration = 0
	case float64:
		d.Duration = time.Duration(x * float64(time.Second))
	case string:
		if x == "" {
			d.Duration = 0
			return nil
		}
		p, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %v", x, err)
		}
		d.Duration = p
	default:
		return fmt.Errorf("invalid duration %v", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
