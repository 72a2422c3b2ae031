package detect

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRecord decodes one tab-separated input line into exactly one value
// per channel. A field-count mismatch or non-numeric field fails the whole
// record before any state is touched.
func parseRecord(line string, channels int) ([]float64, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != channels {
		return nil, fmt.Errorf("record has %d fields, want %d", len(fields), channels)
	}

	values := make([]float64, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q is not numeric", i, field)
		}
		values[i] = v
	}
	return values, nil
}
