package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/vijay-prabhu/gmailconn/internal/email"
	"github.com/vijay-prabhu/gmailconn/internal/failure"
)

// JSON writes data as JSON to stdout
func JSON(data any) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as JSON to the given writer
func JSONTo(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(jsonView(data))
}

// Output writes data in the specified format to stdout
func Output(format string, data any) error {
	return OutputTo(os.Stdout, format, data)
}

// OutputTo writes data in the specified format to the given writer
func OutputTo(w io.Writer, format string, data any) error {
	switch format {
	case "json":
		return JSONTo(w, data)
	case "table", "":
		return TableTo(w, data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// batchResultJSON exposes the error of a batch entry, which email.BatchResult
// hides from encoding/json
type batchResultJSON struct {
	ID       string       `json:"id"`
	Email    *email.Email `json:"email,omitempty"`
	Error    string       `json:"error,omitempty"`
	Category string       `json:"category,omitempty"`
}

func jsonView(data any) any {
	results, ok := data.([]email.BatchResult)
	if !ok {
		return data
	}

	view := make([]batchResultJSON, len(results))
	for i, r := range results {
		view[i] = batchResultJSON{ID: r.ID, Email: r.Email}
		if r.Err != nil {
			view[i].Error = r.Err.Error()
			view[i].Category = string(failure.CategoryOf(r.Err))
		}
	}
	return view
}
