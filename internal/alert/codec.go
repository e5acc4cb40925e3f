package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Provider event types that produce an alert.
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentLinkPaid   = "payment.link.paid"
)

var (
	ErrUnhandledEventType = errors.New("unhandled event type")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// DecodeError reports why a webhook body did not produce an alert.
// errors.Is matches it against ErrUnhandledEventType or ErrMalformedPayload.
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Event == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("event %q: %s", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Defaults are the values substituted for fields a payload does not carry.
type Defaults struct {
	Currency       string
	AnonymousLabel string
	IDPrefix       string
}

// DefaultDefaults mirrors the provider's home market.
var DefaultDefaults = Defaults{
	Currency:       "INR",
	AnonymousLabel: "Anonymous",
	IDPrefix:       "alert",
}

// Envelope is the outer shape of every provider webhook body.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// EntityKind tags which known payload shape an Entity was read from.
type EntityKind int

const (
	KindPayment EntityKind = iota + 1
	KindPaymentLink
)

func (k EntityKind) String() string {
	switch k {
	case KindPayment:
		return "payment"
	case KindPaymentLink:
		return "payment_link"
	default:
		return "unknown"
	}
}

// Entity is the normalized view of one payload variant. Fields the variant
// does not carry are left empty; Amount is nil when absent or unparseable.
type Entity struct {
	Kind     EntityKind
	ID       string
	Amount   *float64 // minor units
	Currency string
	Names    []string // candidate display names, best first
}

type paymentEntity struct {
	ID           json.RawMessage `json:"id"`
	Amount       json.RawMessage `json:"amount"`
	Currency     json.RawMessage `json:"currency"`
	Contact      json.RawMessage `json:"contact"`
	CustomerName json.RawMessage `json:"customer_name"`
	Name         json.RawMessage `json:"name"`
}

type paymentLinkEntity struct {
	ID         json.RawMessage `json:"id"`
	Amount     json.RawMessage `json:"amount"`
	AmountPaid json.RawMessage `json:"amount_paid"`
	Currency   json.RawMessage `json:"currency"`
	Customer   json.RawMessage `json:"customer"`
}

type linkCustomer struct {
	Name    json.RawMessage `json:"name"`
	Contact json.RawMessage `json:"contact"`
}

// payloadShapes lists the known variants in extraction priority order.
type payloadShapes struct {
	Payment *struct {
		Entity paymentEntity `json:"entity"`
	} `json:"payment"`
	PaymentLink *struct {
		Entity paymentLinkEntity `json:"entity"`
	} `json:"payment_link"`
}

// Entities parses a webhook payload object into its known variants,
// highest priority first. A null or missing payload yields no entities.
func Entities(payload json.RawMessage) ([]Entity, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var shapes payloadShapes
	if err := json.Unmarshal(trimmed, &shapes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var out []Entity
	if p := shapes.Payment; p != nil {
		e := p.Entity
		out = append(out, Entity{
			Kind:     KindPayment,
			ID:       parseString(e.ID),
			Amount:   parseAmount(e.Amount),
			Currency: parseString(e.Currency),
			Names:    []string{parseString(e.Contact), parseString(e.CustomerName), parseString(e.Name)},
		})
	}
	if l := shapes.PaymentLink; l != nil {
		e := l.Entity
		amount := parseAmount(e.AmountPaid)
		if amount == nil || *amount == 0 {
			amount = parseAmount(e.Amount)
		}
		// A customer that is not an object carries no names.
		var cust linkCustomer
		_ = json.Unmarshal(e.Customer, &cust)
		out = append(out, Entity{
			Kind:     KindPaymentLink,
			ID:       parseString(e.ID),
			Amount:   amount,
			Currency: parseString(e.Currency),
			Names:    []string{parseString(cust.Contact), parseString(cust.Name)},
		})
	}
	return out, nil
}

// parseAmount accepts a JSON number or a numeric string.
func parseAmount(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseString returns a JSON string's value, or "" for any other value.
func parseString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Codec turns provider webhook bodies into alerts. It is safe for
// concurrent use.
type Codec struct {
	defaults Defaults
	now      func() time.Time
}

// syntheticSeq is shared by every Codec so ids stay unique when the
// codec is replaced on config reload.
var syntheticSeq atomic.Uint64

// NewCodec creates a Codec. Empty fields in d fall back to DefaultDefaults.
func NewCodec(d Defaults) *Codec {
	if d.Currency == "" {
		d.Currency = DefaultDefaults.Currency
	}
	if d.AnonymousLabel == "" {
		d.AnonymousLabel = DefaultDefaults.AnonymousLabel
	}
	if d.IDPrefix == "" {
		d.IDPrefix = DefaultDefaults.IDPrefix
	}
	return &Codec{defaults: d, now: time.Now}
}

// Defaults returns the substitution values in effect.
func (c *Codec) Defaults() Defaults { return c.defaults }

// Handles reports whether eventType produces an alert.
func Handles(eventType string) bool {
	switch eventType {
	case EventPaymentCaptured, EventPaymentAuthorized, EventPaymentLinkPaid:
		return true
	}
	return false
}

// Decode parses a raw webhook body. The body is kept in Alert.Raw, with
// any invalid UTF-8 replaced by U+FFFD so viewers always receive valid text.
func (c *Codec) Decode(body []byte) (Alert, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Alert{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
	}
	a, err := c.DecodeEvent(env.Event, env.Payload)
	if err != nil {
		return Alert{}, err
	}
	if utf8.Valid(body) {
		a.Raw = json.RawMessage(bytes.Clone(body))
	} else {
		a.Raw = json.RawMessage(bytes.ToValidUTF8(body, []byte("\uFFFD")))
	}
	return a, nil
}

// DecodeEvent builds an alert from an already-split event type and payload.
func (c *Codec) DecodeEvent(eventType string, payload json.RawMessage) (Alert, error) {
	if !Handles(eventType) {
		return Alert{}, &DecodeError{Event: eventType, Err: ErrUnhandledEventType}
	}
	entities, err := Entities(payload)
	if err != nil {
		return Alert{}, &DecodeError{Event: eventType, Err: err}
	}

	now := c.now()
	a := Alert{
		Name:      c.defaults.AnonymousLabel,
		Currency:  c.defaults.Currency,
		Timestamp: now,
	}
	a.Amount = firstAmount(entities)
	if name := firstName(entities); name != "" {
		a.Name = name
	}
	if cur := firstCurrency(entities); cur != "" {
		a.Currency = cur
	}
	a.ID = firstID(entities)
	if a.ID == "" {
		a.ID = c.syntheticID(now)
	}
	return a, nil
}

// syntheticID is unique within the process: the counter breaks ties
// between calls in the same millisecond.
func (c *Codec) syntheticID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%d", c.defaults.IDPrefix, now.UnixMilli(), syntheticSeq.Add(1))
}

func firstAmount(es []Entity) *float64 {
	for _, e := range es {
		if e.Amount != nil {
			major := math.Round(*e.Amount) / 100
			return &major
		}
	}
	return nil
}

func firstName(es []Entity) string {
	for _, e := range es {
		for _, n := range e.Names {
			if n != "" {
				return n
			}
		}
	}
	return ""
}

func firstCurrency(es []Entity) string {
	for _, e := range es {
		if e.Currency != "" {
			return e.Currency
		}
	}
	return ""
}

func firstID(es []Entity) string {
	for _, e := range es {
		if e.ID != "" {
			return e.ID
		}
	}
	return ""
}
