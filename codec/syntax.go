package codec

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DescribeSyntaxError explains why data is not a single JSON value, naming
// the expected token and the byte offset it was missing at. err is the
// error the rejecting codec returned; its text is used when the standard
// library scanner accepts data.
func DescribeSyntaxError(data []byte, err error) string {
	var v any
	verr := json.Unmarshal(data, &v)

	var se *json.SyntaxError
	if errors.As(verr, &se) {
		return fmt.Sprintf("%s at byte offset %d", se.Error(), se.Offset)
	}
	if err == nil {
		return "invalid JSON"
	}
	return err.Error()
}
