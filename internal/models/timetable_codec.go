package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// legacySlotAliases maps field names found in imported documents to SlotEntry keys.
var legacySlotAliases = map[string]string{
	"subject": "subjectName",
	"name":    "subjectName",
	"code":    "subjectCode",
	"faculty": "facultyName",
	"room":    "roomNumber",
}

// DecodeSchedule converts a loosely typed timetable document into a Schedule.
// Numeric period keys are zero-based ("0" -> "P1"), field aliases are folded and
// scalar types are coerced.
func DecodeSchedule(doc map[string]interface{}) (Schedule, error) {
	out := make(Schedule, len(doc))
	for day, rawDay := range doc {
		slots, ok := rawDay.(map[string]interface{})
		if !ok {
			if rawDay == nil {
				continue
			}
			return nil, fmt.Errorf("day %s: expected object, got %T", day, rawDay)
		}
		daySchedule := make(DaySchedule, len(slots))
		for key, rawSlot := range slots {
			periodKey := NormalizePeriodKey(key)
			if rawSlot == nil {
				daySchedule[periodKey] = nil
				continue
			}
			fields, ok := rawSlot.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("day %s slot %s: expected object, got %T", day, key, rawSlot)
			}
			entry, err := DecodeSlotEntry(fields)
			if err != nil {
				return nil, fmt.Errorf("day %s slot %s: %w", day, key, err)
			}
			daySchedule[periodKey] = entry
		}
		out[day] = daySchedule
	}
	return out, nil
}

// DecodeSlotEntry decodes a single slot document honouring legacy aliases.
func DecodeSlotEntry(fields map[string]interface{}) (*SlotEntry, error) {
	normalized := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		normalized[key] = value
	}
	for alias, canonical := range legacySlotAliases {
		value, ok := normalized[alias]
		if !ok {
			continue
		}
		delete(normalized, alias)
		if existing, present := normalized[canonical]; present && existing != nil && existing != "" {
			continue
		}
		normalized[canonical] = value
	}

	var entry SlotEntry
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &entry,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build slot decoder: %w", err)
	}
	if err := decoder.Decode(normalized); err != nil {
		return nil, fmt.Errorf("decode slot: %w", err)
	}
	if entry.Type == "" {
		entry.Type = SlotTypeTheory
	}
	return &entry, nil
}

// NormalizePeriodKey maps "0".."n" to "P1".."P(n+1)" and upper-cases "p3".
// Keys that are neither (e.g. break markers) are returned unchanged.
func NormalizePeriodKey(key string) string {
	trimmed := strings.TrimSpace(key)
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 0 {
		return PeriodKey(n + 1)
	}
	if len(trimmed) > 1 && (trimmed[0] == 'p' || trimmed[0] == 'P') {
		if n, err := strconv.Atoi(trimmed[1:]); err == nil && n > 0 {
			return PeriodKey(n)
		}
	}
	return trimmed
}
