package claudecode

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// MaxLineSize bounds a single stream line. Large assistant messages with
// embedded file contents routinely reach megabytes.
const MaxLineSize = 10 * 1024 * 1024

var errLineTooLong = errors.New("line exceeds maximum size")

// MalformedLineFunc is invoked for every line that fails to decode.
// The stream continues with the next line.
type MalformedLineFunc func(line string, err error)

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithMalformedLineFunc reports malformed lines instead of dropping them silently.
func WithMalformedLineFunc(fn MalformedLineFunc) ScannerOption {
	return func(s *Scanner) {
		s.onMalformed = fn
	}
}

// Scanner reads newline-delimited stream-json messages. Empty lines are
// skipped; malformed lines (bad JSON or oversized) are reported via the
// malformed-line callback and never abort the stream. Only a read error on
// the underlying reader ends a scan early.
type Scanner struct {
	r           *bufio.Reader
	msg         *Message
	err         error
	onMalformed MalformedLineFunc
}

// NewScanner creates a Scanner over the agent's stdout stream.
func NewScanner(r io.Reader, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		r: bufio.NewReaderSize(r, 64*1024),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan advances to the next well-formed message. It returns false at end of
// stream or on a read error; check Err afterwards.
func (s *Scanner) Scan() bool {
	for {
		line, err := s.nextLine()
		if err == errLineTooLong {
			if s.onMalformed != nil {
				s.onMalformed("", errLineTooLong)
			}
			continue
		}
		if err != nil && err != io.EOF {
			s.err = err
			return false
		}
		atEOF := err == io.EOF

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var msg Message
			if jsonErr := json.Unmarshal(line, &msg); jsonErr != nil {
				if s.onMalformed != nil {
					s.onMalformed(string(line), jsonErr)
				}
			} else {
				s.msg = &msg
				return true
			}
		}

		if atEOF {
			return false
		}
	}
}

// Message returns the message decoded by the last successful Scan.
func (s *Scanner) Message() *Message {
	return s.msg
}

// Err returns the first read error encountered, if any. EOF is not an error.
func (s *Scanner) Err() error {
	return s.err
}

// nextLine reads one full line, accumulating continuation chunks. A line
// beyond MaxLineSize is drained to its end and reported as errLineTooLong so
// the following line parses cleanly.
func (s *Scanner) nextLine() ([]byte, error) {
	var buf []byte
	overflowed := false
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			if err == io.EOF && (len(buf) > 0 || len(chunk) > 0) {
				return append(buf, chunk...), io.EOF
			}
			return nil, err
		}
		if !overflowed {
			if len(buf)+len(chunk) > MaxLineSize {
				overflowed = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			if overflowed {
				return nil, errLineTooLong
			}
			return buf, nil
		}
	}
}
