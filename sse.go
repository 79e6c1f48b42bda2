package sbhsd

import (
	"bufio"
	"bytes"
	"io"
)

var sseData = []byte("data: ")

// WriteSSE writes payload as one Server-Sent Event.
func WriteSSE(w io.Writer, payload []byte) error {
	buf := make([]byte, 0, len(sseData)+len(payload)+2)
	buf = append(buf, sseData...)
	buf = append(buf, payload...)
	buf = append(buf, '\n', '\n')

	_, err := w.Write(buf)
	return err
}

// ReadSSE returns the data of the next event, without the "data: " prefix.
// Multi-line data fields are joined with '\n'.
func ReadSSE(r *bufio.Reader) ([]byte, error) {
	var data []byte
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return data, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if len(data) == 0 {
				continue // Heading blank lines.
			}
			return data, nil
		}

		p, ok := bytes.CutPrefix(line, sseData)
		if !ok {
			continue // Comments, ids and other fields.
		}

		if len(data) > 0 {
			data = append(data, '\n')
		}
		data = append(data, p...)
	}
}
