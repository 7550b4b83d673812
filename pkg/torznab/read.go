package torznab

import (
	"fmt"
	"io"
	"net/http"
)

// maxResponseBytes bounds how much of a search response is read.
const maxResponseBytes = 16 << 20

func readAll(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
