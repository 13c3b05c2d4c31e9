package models

import (
	"encoding/json"
)

// DecodeResult parses a result response body. The service normally wraps the
// payload as {"result": {...}} but has been observed to return the same shape
// unwrapped at the top level; the wrapped form wins when both appear.
func DecodeResult(data []byte) (*ResultSet, error) {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Result != nil {
		return env.Result, nil
	}
	return &ResultSet{
		DetailedEntries: env.DetailedEntries,
		SummaryEntries:  env.SummaryEntries,
		Narrative:       env.Narrative,
	}, nil
}
