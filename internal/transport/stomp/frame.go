package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	CommandConnect     = "CONNECT"
	CommandConnected   = "CONNECTED"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"
	CommandMessage     = "MESSAGE"
	CommandError       = "ERROR"
	CommandDisconnect  = "DISCONNECT"
	CommandReceipt     = "RECEIPT"
)

var (
	ErrHeartbeat       = errors.New("heartbeat")
	ErrMissingNull     = errors.New("frame not terminated by NULL")
	ErrMalformedHeader = errors.New("malformed header")
)

// Frame is a single STOMP 1.2 frame. One websocket message carries one frame.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

func NewFrame(command string, headers ...string) *Frame {
	f := &Frame{Command: command, Headers: make(map[string]string, len(headers)/2)}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers[headers[i]] = headers[i+1]
	}
	return f
}

func (f *Frame) Header(name string) string {
	return f.Headers[name]
}

// Encode writes the frame in wire format. Headers are sorted so equal frames
// encode to equal bytes.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	raw := f.Command == CommandConnect || f.Command == CommandConnected
	keys := make([]string, 0, len(f.Headers))
	for k := range f.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if raw {
			buf.WriteString(k + ":" + f.Headers[k])
		} else {
			buf.WriteString(escape(k) + ":" + escape(f.Headers[k]))
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// Decode parses one frame. A message holding only end-of-lines is a
// heartbeat and returns ErrHeartbeat.
func Decode(data []byte) (*Frame, error) {
	data = bytes.TrimLeft(data, "\r\n")
	if len(data) == 0 {
		return nil, ErrHeartbeat
	}

	headerEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headerEnd < 0 || crlf < headerEnd) {
		headerEnd, sepLen = crlf, 4
	}
	if headerEnd < 0 {
		return nil, fmt.Errorf("no header terminator: %w", ErrMalformedHeader)
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headerEnd]), "\r\n", "\n"), "\n")
	f := &Frame{Command: lines[0], Headers: make(map[string]string, len(lines)-1)}
	raw := f.Command == CommandConnect || f.Command == CommandConnected
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%q: %w", line, ErrMalformedHeader)
		}
		if !raw {
			var err error
			if k, err = unescape(k); err != nil {
				return nil, err
			}
			if v, err = unescape(v); err != nil {
				return nil, err
			}
		}
		// repeated headers: the first one wins
		if _, seen := f.Headers[k]; !seen {
			f.Headers[k] = v
		}
	}

	rest := data[headerEnd+sepLen:]
	if cl, ok := f.Headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n >= len(rest) || rest[n] != 0 {
			return nil, fmt.Errorf("content-length %q: %w", cl, ErrMissingNull)
		}
		f.Body = append([]byte(nil), rest[:n]...)
		return f, nil
	}
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return nil, ErrMissingNull
	}
	f.Body = append([]byte(nil), rest[:end]...)
	return f, nil
}

var escaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)

func escape(s string) string {
	return escaper.Replace(s)
}

func unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 == len(s) {
			return "", fmt.Errorf("trailing escape in %q: %w", s, ErrMalformedHeader)
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("undefined escape \\%c: %w", s[i], ErrMalformedHeader)
		}
	}
	return b.String(), nil
}
