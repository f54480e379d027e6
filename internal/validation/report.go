package validation

import (
	"fmt"
	"sort"
)

type Kind string

const (
	KindRequired          Kind = "required"
	KindEmptyBatch        Kind = "empty_batch"
	KindNotAList          Kind = "not_a_list"
	KindInvalidDateFormat Kind = "invalid_date_format"
	KindPastStartTime     Kind = "past_start_time"
	KindEndBeforeStart    Kind = "end_before_start"
	KindDurationTooShort  Kind = "duration_too_short"
	KindInternalOverlap   Kind = "internal_overlap"
	KindExternalOverlap   Kind = "external_overlap"
)

type Violation struct {
	Kind    Kind
	Message string
}

// Report collects violations keyed by field path, e.g. "slots", "slots.0.start_time" or "end_time".
// The zero value is ready to use.
type Report struct {
	fields map[string][]Violation
}

func (r *Report) Add(key string, kind Kind, message string) {
	if r.fields == nil {
		r.fields = make(map[string][]Violation)
	}
	r.fields[key] = append(r.fields[key], Violation{Kind: kind, Message: message})
}

// OK reports whether no violation has been recorded.
func (r *Report) OK() bool {
	return r == nil || len(r.fields) == 0
}

func (r *Report) Has(key string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fields[key]
	return ok
}

func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// Keys returns the reported field paths in lexical order.
func (r *Report) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *Report) Violations(key string) []Violation {
	if r == nil {
		return nil
	}
	return r.fields[key]
}

func (r *Report) Kinds(key string) []Kind {
	vs := r.Violations(key)
	kinds := make([]Kind, 0, len(vs))
	for _, v := range vs {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// First returns the first message recorded for key, or "".
func (r *Report) First(key string) string {
	vs := r.Violations(key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Message
}

// Messages flattens the report into the field -> messages shape used in API responses.
func (r *Report) Messages() map[string][]string {
	out := make(map[string][]string, r.Len())
	if r == nil {
		return out
	}
	for k, vs := range r.fields {
		msgs := make([]string, 0, len(vs))
		for _, v := range vs {
			msgs = append(msgs, v.Message)
		}
		out[k] = msgs
	}
	return out
}

// Error carries a rejected report through an error return.
type Error struct {
	Report *Report
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", e.Report.Len())
}

// ConflictError reports a slot rejected by the store's own overlap guard under key.
func ConflictError(key string) *Error {
	report := &Report{}
	msg := msgExternalOverlap
	if key == fieldStart {
		msg = msgAlreadyBooked
	}
	report.Add(key, KindExternalOverlap, msg)
	return &Error{Report: report}
}

const (
	// BatchKey is the report key for batch-level violations.
	BatchKey = batchKey
	// StartTimeKey is the report key of a single slot's start time.
	StartTimeKey = fieldStart
)
