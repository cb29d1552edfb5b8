package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errNotANumber = errors.New("not_a_number")

func parseOptionalInt(value string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	return strconv.Atoi(trimmed)
}

// parseDecimal accepts a JSON number or a numeric string.
func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, errNotANumber
	}
	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return decimal.Zero, errNotANumber
		}
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero, errNotANumber
	}
	return parsed, nil
}

// parseWholeNumber parses raw as an integral value, rejecting fractions.
func parseWholeNumber(raw json.RawMessage) (int64, error) {
	parsed, err := parseDecimal(raw)
	if err != nil {
		return 0, err
	}
	if !parsed.IsInteger() || parsed.GreaterThan(decimal.NewFromInt(1<<62)) || parsed.LessThan(decimal.NewFromInt(-(1 << 62))) {
		return 0, errNotANumber
	}
	return parsed.IntPart(), nil
}
