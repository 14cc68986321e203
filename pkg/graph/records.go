package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"

	"github.com/kaptinlin/jsonrepair"
)

// ErrMalformedRecord marks node or relationship entries that cannot be
// ingested, e.g. a node without id and name. Such entries are skipped.
var ErrMalformedRecord = errors.New("malformed record")

// DecodeRecords parses extractor output into raw records. It accepts a list
// of records, a single record object or an envelope of the form
// {"records": [...]}.
//
// Extractor output is frequently produced by a language model, so input that
// is not valid JSON is passed through a repair step before giving up.
// Double-encoded JSON strings are unwrapped as well.
func DecodeRecords(input []byte) ([]common.RawRecord, error) {
	s := strings.TrimSpace(string(input))
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedRecord)
	}

	records, err := decodeRecordsJSON(s)
	if err == nil {
		return records, nil
	}

	var asString string
	if json.Unmarshal([]byte(s), &asString) == nil {
		asString = strings.TrimSpace(asString)
		if records, err := decodeRecordsJSON(asString); err == nil {
			return records, nil
		}
		s = asString
	}

	repaired, repairErr := jsonrepair.JSONRepair(s)
	if repairErr != nil {
		return nil, fmt.Errorf("%w: json repair failed: %v", ErrMalformedRecord, repairErr)
	}
	records, err = decodeRecordsJSON(repaired)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return records, nil
}

func decodeRecordsJSON(s string) ([]common.RawRecord, error) {
	if s == "" {
		return nil, errors.New("empty input")
	}

	switch s[0] {
	case '[':
		var records []common.RawRecord
		if err := json.Unmarshal([]byte(s), &records); err != nil {
			return nil, err
		}
		return records, nil
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &envelope); err != nil {
			return nil, err
		}
		if raw, ok := envelope["records"]; ok {
			var records []common.RawRecord
			if err := json.Unmarshal(raw, &records); err != nil {
				return nil, err
			}
			return records, nil
		}
		var record common.RawRecord
		if err := json.Unmarshal([]byte(s), &record); err != nil {
			return nil, err
		}
		return []common.RawRecord{record}, nil
	default:
		return nil, fmt.Errorf("unexpected leading character %q", s[0])
	}
}
