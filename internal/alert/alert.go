package alert

import (
	"encoding/json"
	"time"
)

// Alert is the canonical donation record distributed to viewers.
type Alert struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Amount   *float64 `json:"amount"` // major units; nil when the provider sent none
	Currency string   `json:"currency"`
	// Timestamp is when this process recorded the alert, not the provider's event time.
	Timestamp time.Time `json:"timestamp"`
	// Seq is the 1-based position in the alert log; zero until appended.
	Seq uint64          `json:"seq"`
	Raw json.RawMessage `json:"raw,omitempty"`
}

// MarshalJSON encodes the alert with an extra "ts" field in unix milliseconds,
// which overlay clients sort and format on.
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	return json.Marshal(struct {
		plain
		TS int64 `json:"ts"`
	}{plain: plain(a), TS: a.Timestamp.UnixMilli()})
}

// UnmarshalJSON accepts the form produced by MarshalJSON.
func (a *Alert) UnmarshalJSON(data []byte) error {
	type plain Alert
	var v struct {
		plain
		TS int64 `json:"ts"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Alert(v.plain)
	if a.Timestamp.IsZero() && v.TS != 0 {
		a.Timestamp = time.UnixMilli(v.TS)
	}
	return nil
}

// Clone returns a copy of a that shares no memory with it.
func (a Alert) Clone() Alert {
	if a.Amount != nil {
		v := *a.Amount
		a.Amount = &v
	}
	if a.Raw != nil {
		a.Raw = append(json.RawMessage(nil), a.Raw...)
	}
	return a
}
