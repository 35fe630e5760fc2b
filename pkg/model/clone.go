package model

import "github.com/mohae/deepcopy"

// CloneRecord returns a deep copy of record.
func CloneRecord(record Record) Record {
	if record == nil {
		return nil
	}
	copied, ok := deepcopy.Copy(record).(Record)
	if !ok {
		return Record{}
	}
	return copied
}

// CloneRecords deep-copies every record into a fresh slice.
func CloneRecords(records []Record) []Record {
	if records == nil {
		return nil
	}
	out := make([]Record, len(records))
	for i, record := range records {
		out[i] = CloneRecord(record)
	}
	return out
}

// CloneValue deep-copies an arbitrary decoded JSON value.
func CloneValue(value any) any {
	return deepcopy.Copy(value)
}
