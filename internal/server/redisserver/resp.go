package redisserver

import (
	"bufio"
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Protocol limits.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	// A call is [actor, method, payload]; a few extra positional strings are allowed.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (8MB).
	MaxBulkLen = 8 * 1024 * 1024

	// MaxInlineLen limits inline command line length (4KB).
	MaxInlineLen = 4 * 1024

	// maxReplyDepth limits nesting when reading replies.
	maxReplyDepth = 32
)

var (
	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// arrayMarker is the type of ArrayMarker.
type arrayMarker struct{}

// ArrayMarker may lead a []any to mark it as an already built array.
// WriteValue drops it, so the marker never reaches the wire.
var ArrayMarker = arrayMarker{}

// Error is a RESP error reply.
type Error string

func (e Error) Error() string { return string(e) }

// Status is a RESP simple string reply.
type Status string

// ReadCommand reads one command: an array of bulk strings, or an inline
// command line. An empty command yields nil.
func ReadCommand(r *bufio.Reader) ([][]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	switch b[0] {
	case '*':
		return readArrayCommand(r)
	default:
		// Inline command (used by telnet and redis-cli pipes): "PING\r\n"
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return nil, nil
		}
		parts := strings.Fields(line)
		out := make([][]byte, 0, len(parts))
		for _, p := range parts {
			out = append(out, []byte(p))
		}
		return out, nil
	}
}

func readArrayCommand(r *bufio.Reader) ([][]byte, error) {
	n, err := readLength(r, '*', MaxArrayLen)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	out := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		arg, err := readBulkString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, arg)
	}
	return out, nil
}

// readLength reads a "<prefix><n>\r\n" header. -1 is returned as is.
func readLength(r *bufio.Reader, prefix byte, limit int) (int, error) {
	line, err := readLine(r, 64)
	if err != nil {
		return 0, err
	}
	if len(line) < 2 || line[0] != prefix {
		return 0, fmt.Errorf("%w: expected '%c'", ErrProtocol, prefix)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < -1 {
		return 0, fmt.Errorf("%w: invalid length", ErrProtocol)
	}
	if n > limit {
		return 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrLimitExceeded, n, limit)
	}
	return n, nil
}

func readBulkString(r *bufio.Reader) ([]byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}
	if b[0] == '+' {
		// Simple strings as args (best-effort).
		line, err := readLine(r, MaxInlineLen)
		if err != nil {
			return nil, err
		}
		return []byte(line[1:]), nil
	}

	n, err := readLength(r, '$', MaxBulkLen)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return nil, nil
	}

	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(buf, []byte("\r\n")) {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return buf[:n], nil
}

func readLine(r *bufio.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", fmt.Errorf("%w: invalid maxLen", ErrProtocol)
	}

	var buf []byte
	for {
		frag, err := r.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > maxLen {
				return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
			}
			continue
		}
		return "", err
	}

	if len(buf) > maxLen {
		return "", fmt.Errorf("%w: line length exceeds limit %d", ErrLimitExceeded, maxLen)
	}
	if len(buf) < 2 || !bytes.HasSuffix(buf, []byte("\r\n")) {
		return "", fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}

	buf = bytes.TrimSuffix(buf, []byte("\r\n"))
	return string(buf), nil
}

// ReadReply reads any RESP2 value. Simple strings decode to Status, errors
// to Error, integers to int64, bulk strings to string, nil to nil and
// arrays to []any.
func ReadReply(r *bufio.Reader) (any, error) {
	return readReply(r, 0)
}

func readReply(r *bufio.Reader, depth int) (any, error) {
	if depth > maxReplyDepth {
		return nil, fmt.Errorf("%w: reply nested too deeply", ErrLimitExceeded)
	}
	b, err := r.Peek(1)
	if err != nil {
		return nil, err
	}

	switch b[0] {
	case '+', '-', ':':
		line, err := readLine(r, MaxBulkLen)
		if err != nil {
			return nil, err
		}
		switch line[0] {
		case '+':
			return Status(line[1:]), nil
		case '-':
			return Error(line[1:]), nil
		default:
			n, err := strconv.ParseInt(line[1:], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid integer", ErrProtocol)
			}
			return n, nil
		}
	case '$':
		bulk, err := readBulkString(r)
		if err != nil || bulk == nil {
			return nil, err
		}
		return string(bulk), nil
	case '*':
		n, err := readLength(r, '*', MaxArrayLen)
		if err != nil || n == -1 {
			return nil, err
		}
		out := make([]any, 0, n)
		for i := 0; i < n; i++ {
			v, err := readReply(r, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unexpected reply type '%c'", ErrProtocol, b[0])
	}
}

func WriteSimpleString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("+" + s + "\r\n")
	return err
}

func WriteError(w *bufio.Writer, s string) error {
	_, err := w.WriteString("-" + s + "\r\n")
	return err
}

func WriteInteger(w *bufio.Writer, n int64) error {
	_, err := w.WriteString(":" + strconv.FormatInt(n, 10) + "\r\n")
	return err
}

func WriteNullBulk(w *bufio.Writer) error {
	_, err := w.WriteString("$-1\r\n")
	return err
}

func WriteBulk(w *bufio.Writer, b []byte) error {
	if b == nil {
		return WriteNullBulk(w)
	}
	if _, err := w.WriteString("$" + strconv.Itoa(len(b)) + "\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func WriteBulkString(w *bufio.Writer, s string) error {
	_, err := w.WriteString("$" + strconv.Itoa(len(s)) + "\r\n" + s + "\r\n")
	return err
}

func WriteArrayHeader(w *bufio.Writer, n int) error {
	_, err := w.WriteString("*" + strconv.Itoa(n) + "\r\n")
	return err
}

// WriteValue encodes an actor return value. Rules, in order:
//
//	nil                          nil bulk
//	bool                         integer 1 or 0
//	integer                      integer
//	string without line break    simple string
//	string with line break       bulk string
//	[]byte                       bulk string
//	slice or array               array, leading ArrayMarker dropped
//	fmt.Stringer, TextMarshaler  bulk string of the text
//	anything else                bulk string of the JSON encoding
func WriteValue(w *bufio.Writer, v any) error {
	switch t := v.(type) {
	case nil:
		return WriteNullBulk(w)
	case bool:
		if t {
			return WriteInteger(w, 1)
		}
		return WriteInteger(w, 0)
	case int:
		return WriteInteger(w, int64(t))
	case int8:
		return WriteInteger(w, int64(t))
	case int16:
		return WriteInteger(w, int64(t))
	case int32:
		return WriteInteger(w, int64(t))
	case int64:
		return WriteInteger(w, t)
	case uint8:
		return WriteInteger(w, int64(t))
	case uint16:
		return WriteInteger(w, int64(t))
	case uint32:
		return WriteInteger(w, int64(t))
	case uint:
		return writeUnsigned(w, uint64(t))
	case uint64:
		return writeUnsigned(w, t)
	case uintptr:
		return writeUnsigned(w, uint64(t))
	case string:
		if strings.ContainsAny(t, "\r\n") {
			return WriteBulkString(w, t)
		}
		return WriteSimpleString(w, t)
	case Status:
		return WriteSimpleString(w, string(t))
	case []byte:
		if t == nil {
			return WriteBulk(w, []byte{})
		}
		return WriteBulk(w, t)
	case []any:
		if len(t) > 0 && t[0] == ArrayMarker {
			t = t[1:]
		}
		if err := WriteArrayHeader(w, len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := WriteValue(w, item); err != nil {
				return err
			}
		}
		return nil
	case []string:
		if err := WriteArrayHeader(w, len(t)); err != nil {
			return err
		}
		for _, item := range t {
			if err := WriteValue(w, item); err != nil {
				return err
			}
		}
		return nil
	case fmt.Stringer:
		return WriteBulkString(w, t.String())
	case encoding.TextMarshaler:
		text, err := t.MarshalText()
		if err != nil {
			return err
		}
		return WriteBulk(w, text)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if err := WriteArrayHeader(w, rv.Len()); err != nil {
			return err
		}
		for i := 0; i < rv.Len(); i++ {
			if err := WriteValue(w, rv.Index(i).Interface()); err != nil {
				return err
			}
		}
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	return WriteBulk(w, data)
}

// writeUnsigned writes n as an integer, or as a bulk decimal string when it
// does not fit a signed 64-bit integer.
func writeUnsigned(w *bufio.Writer, n uint64) error {
	if n > math.MaxInt64 {
		return WriteBulkString(w, strconv.FormatUint(n, 10))
	}
	return WriteInteger(w, int64(n))
}

func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	// Uppercase ASCII without allocating for already uppercased tokens.
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
