package ioutil

import (
	"fmt"
	"io"
)

// ReadLimited reads at most limit bytes from r, for quoting remote error
// bodies in diagnostics. A read failure yields a placeholder string rather
// than an error, since callers are already on an error path.
func ReadLimited(r io.Reader, limit int64) string {
	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return fmt.Sprintf("<unreadable: %v>", err)
	}
	return string(body)
}
