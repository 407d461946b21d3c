package rtvoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Debug dumps go to stderr; stdout may carry audio.
func debugHeader(sessionID, direction string) *strings.Builder {
	buf := &strings.Builder{}
	buf.WriteString(fmt.Sprintf("MSG(%s|%s)", sessionID, direction))
	if direction == "in" {
		buf.WriteString(" <-- ")
	} else {
		buf.WriteString(" --> ")
	}
	return buf
}

func debugMessage(sessionID string, m any, direction string) {
	buf := debugHeader(sessionID, direction)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		buf.WriteString(fmt.Sprintf("failed to marshal message: %+v %s", m, err))
		buf.WriteString("\n")
		fmt.Fprintln(os.Stderr, buf.String())
		return
	}

	buf.WriteString("\n")
	buf.WriteString(string(data))
	buf.WriteString("\n")
	fmt.Fprintln(os.Stderr, buf.String())
}

func debugFrame(sessionID string, data []byte, direction string) {
	buf := debugHeader(sessionID, direction)
	buf.WriteString("\n")

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		buf.Write(data)
	} else {
		buf.Write(out.Bytes())
	}

	buf.WriteString("\n")
	fmt.Fprintln(os.Stderr, buf.String())
}
