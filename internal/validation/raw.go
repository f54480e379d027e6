package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const msgNotAList = "The slots field must be a list."

// RawSlot is a candidate slot exactly as received from the caller.
//
// Decoding never fails on well-formed JSON: a field holding something other than a
// string is remembered and later reported as an invalid date, and an item that is not
// an object counts as having neither field.
type RawSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	startMalformed bool
	endMalformed   bool
}

func (s *RawSlot) UnmarshalJSON(data []byte) error {
	*s = RawSlot{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}
	s.StartTime, s.startMalformed = stringField(fields[fieldStart])
	s.EndTime, s.endMalformed = stringField(fields[fieldEnd])
	return nil
}

func stringField(raw json.RawMessage) (value string, malformed bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", true
	}
	return value, false
}

// DecodeSlots reads the "slots" member of a request body. A missing or null member
// yields an empty batch; anything other than a list is reported on the batch key.
func DecodeSlots(raw json.RawMessage) ([]RawSlot, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		report := &Report{}
		report.Add(batchKey, KindNotAList, msgNotAList)
		return nil, &Error{Report: report}
	}

	var slots []RawSlot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	return slots, nil
}
