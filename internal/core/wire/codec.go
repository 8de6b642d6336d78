package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Terminator ends every frame on a stream transport. Payloads may contain
// newlines (save data is multi-line) but never a NUL byte.
const Terminator byte = 0x00

const separator = ":"

var (
	// ErrMalformedFrame is returned for frames without a type separator.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownType is returned for frames whose type ordinal is not recognized.
	ErrUnknownType = errors.New("unknown message type")
)

// Message is a single decoded frame.
type Message struct {
	Type    Type
	Payload string
}

func (m Message) String() string {
	return m.Type.String() + ":" + m.Payload
}

// Encode renders a message as a frame body (without the terminator).
func Encode(m Message) []byte {
	return []byte(strconv.Itoa(int(m.Type)) + separator + m.Payload)
}

// Decode parses a frame body (without the terminator) into a Message.
func Decode(frame string) (Message, error) {
	idx := strings.Index(frame, separator)
	if idx < 0 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformedFrame, frame)
	}

	ordinal, err := strconv.Atoi(frame[:idx])
	if err != nil {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, frame[:idx])
	}
	t := Type(ordinal)
	if !t.Valid() {
		return Message{}, fmt.Errorf("%w: %d", ErrUnknownType, ordinal)
	}

	return Message{Type: t, Payload: frame[idx+1:]}, nil
}

// Reader reads terminated frames off of a byte stream.
type Reader struct {
	r *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage blocks until a complete frame has been read. A stream that ends
// mid-frame returns io.ErrUnexpectedEOF; a clean end of stream returns io.EOF.
func (r *Reader) ReadMessage() (Message, error) {
	frame, err := r.r.ReadString(Terminator)
	if err != nil {
		if err == io.EOF && len(frame) > 0 {
			return Message{}, io.ErrUnexpectedEOF
		}
		return Message{}, err
	}
	return Decode(frame[:len(frame)-1])
}

// Writer writes terminated frames to a byte stream.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteMessage writes the frame and its terminator in a single call.
func (w *Writer) WriteMessage(m Message) error {
	frame := append(Encode(m), Terminator)
	if _, err := w.w.Write(frame); err != nil {
		return fmt.Errorf("writing %s frame: %w", m.Type, err)
	}
	return nil
}
