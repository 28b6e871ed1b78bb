package sqlite

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/example/activity-store/internal/persistence"
)

// blobVersion is the schema version written into every blob envelope.
const blobVersion = 1

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The same
// events always produce identical bytes.
var encMode cbor.EncMode

// decMode rejects anything the encoder would never produce: unknown
// fields, duplicate keys and indefinite-length items.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("sqlite: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("sqlite: CBOR decoder initialization failed: " + err.Error())
	}
}

type eventRecord struct {
	Timestamp int64  `cbor:"timestamp"`
	Duration  uint64 `cbor:"duration"`
	Category  string `cbor:"category"`
}

type eventsEnvelope struct {
	Version int           `cbor:"v"`
	Events  []eventRecord `cbor:"events"`
}

type ruleRecord struct {
	Names   []string `cbor:"names"`
	Pattern string   `cbor:"pattern"`
}

type rulesEnvelope struct {
	Version int          `cbor:"v"`
	Rules   []ruleRecord `cbor:"rules"`
}

// maxDurationSeconds is the largest duration representable as time.Duration.
const maxDurationSeconds = uint64(math.MaxInt64 / int64(time.Second))

// EncodeEvents serializes an event batch. Timestamps keep second precision
// and durations are stored as whole seconds.
func EncodeEvents(events []persistence.Event) ([]byte, error) {
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: event batch is empty", persistence.ErrInvalidBlob)
	}

	envelope := eventsEnvelope{
		Version: blobVersion,
		Events:  make([]eventRecord, 0, len(events)),
	}
	for i, event := range events {
		if event.Duration < 0 {
			return nil, fmt.Errorf("%w: event %d has negative duration", persistence.ErrInvalidBlob, i)
		}
		envelope.Events = append(envelope.Events, eventRecord{
			Timestamp: event.Timestamp.Unix(),
			Duration:  uint64(event.Duration / time.Second),
			Category:  event.Category,
		})
	}

	return encMode.Marshal(envelope)
}

// DecodeEvents parses a blob written by EncodeEvents and validates it.
func DecodeEvents(data []byte) ([]persistence.Event, error) {
	var envelope eventsEnvelope
	if err := decMode.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", persistence.ErrInvalidBlob, err)
	}
	if envelope.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported events version %d", persistence.ErrInvalidBlob, envelope.Version)
	}
	if len(envelope.Events) == 0 {
		return nil, fmt.Errorf("%w: event batch is empty", persistence.ErrInvalidBlob)
	}

	events := make([]persistence.Event, 0, len(envelope.Events))
	for i, record := range envelope.Events {
		if record.Duration > maxDurationSeconds {
			return nil, fmt.Errorf("%w: event %d duration out of range", persistence.ErrInvalidBlob, i)
		}
		events = append(events, persistence.Event{
			Timestamp: time.Unix(record.Timestamp, 0).UTC(),
			Duration:  time.Duration(record.Duration) * time.Second,
			Category:  record.Category,
		})
	}
	return events, nil
}

// EncodeRules serializes an ordered rule list.
func EncodeRules(rules []persistence.Rule) ([]byte, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: rule list is empty", persistence.ErrInvalidBlob)
	}

	envelope := rulesEnvelope{
		Version: blobVersion,
		Rules:   make([]ruleRecord, 0, len(rules)),
	}
	for _, rule := range rules {
		names := make([]string, len(rule.Names))
		copy(names, rule.Names)
		envelope.Rules = append(envelope.Rules, ruleRecord{Names: names, Pattern: rule.Pattern})
	}

	return encMode.Marshal(envelope)
}

// DecodeRules parses a blob written by EncodeRules and validates it.
func DecodeRules(data []byte) ([]persistence.Rule, error) {
	var envelope rulesEnvelope
	if err := decMode.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", persistence.ErrInvalidBlob, err)
	}
	if envelope.Version != blobVersion {
		return nil, fmt.Errorf("%w: unsupported rules version %d", persistence.ErrInvalidBlob, envelope.Version)
	}
	if len(envelope.Rules) == 0 {
		return nil, fmt.Errorf("%w: rule list is empty", persistence.ErrInvalidBlob)
	}

	rules := make([]persistence.Rule, 0, len(envelope.Rules))
	for i, record := range envelope.Rules {
		if len(record.Names) == 0 || strings.TrimSpace(record.Pattern) == "" {
			return nil, fmt.Errorf("%w: rule %d is incomplete", persistence.ErrInvalidBlob, i)
		}
		rules = append(rules, persistence.Rule{Names: record.Names, Pattern: record.Pattern})
	}
	return rules, nil
}
