package triple

import (
	"bufio"
	"errors"
	"io"
)

// MaxLineSize caps a single input line. Longer lines are skipped as
// ErrLineTooLong and scanning continues with the next line.
const MaxLineSize = 1 << 20

const readBufferSize = 64 * 1024

// Stats counts what a Scanner saw.
type Stats struct {
	Lines        int
	Parsed       int
	NoMarker     int
	Malformed    int
	Unclassified int
	TooLong      int
}

// Skipped returns the number of lines that produced no triple.
func (s Stats) Skipped() int {
	return s.NoMarker + s.Malformed + s.Unclassified + s.TooLong
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Parsed += o.Parsed
	s.NoMarker += o.NoMarker
	s.Malformed += o.Malformed
	s.Unclassified += o.Unclassified
	s.TooLong += o.TooLong
}

// Scanner yields parsed triples from a reader, silently stepping over
// lines ParseLine skips.
//
//	sc := triple.NewScanner(r)
//	for sc.Scan() {
//		t := sc.Triple()
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	r     *bufio.Reader
	line  []byte
	cur   Triple
	stats Stats
	err   error
	// OnSkip, if set, is called for each skipped line with its 1-based
	// number and the skip reason. Text is empty for ErrLineTooLong.
	OnSkip func(line int, text string, err error)
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Scan advances to the next parsable triple.
func (s *Scanner) Scan() bool {
	for {
		text, tooLong, ok := s.readLine()
		if !ok {
			s.cur = Triple{}
			return false
		}
		s.stats.Lines++

		if tooLong {
			s.stats.TooLong++
			if s.OnSkip != nil {
				s.OnSkip(s.stats.Lines, "", ErrLineTooLong)
			}
			continue
		}

		t, err := ParseLine(text)
		if err == nil {
			s.stats.Parsed++
			s.cur = t
			return true
		}

		switch {
		case errors.Is(err, ErrNoURIMarker):
			s.stats.NoMarker++
		case errors.Is(err, ErrMalformedLine):
			s.stats.Malformed++
		default:
			s.stats.Unclassified++
		}
		if s.OnSkip != nil {
			s.OnSkip(s.stats.Lines, text, err)
		}
	}
}

// readLine returns the next line without its terminator. Chunks past
// MaxLineSize are read and dropped so the following line starts clean.
func (s *Scanner) readLine() (text string, tooLong bool, ok bool) {
	if s.err != nil {
		return "", false, false
	}
	s.line = s.line[:0]
	read := false
	for {
		chunk, isPrefix, err := s.r.ReadLine()
		if err != nil {
			s.err = err
			if !read {
				return "", false, false
			}
			break
		}
		read = true
		if !tooLong {
			if len(s.line)+len(chunk) > MaxLineSize {
				tooLong = true
				s.line = s.line[:0]
			} else {
				s.line = append(s.line, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	return string(s.line), tooLong, true
}

// Triple returns the triple found by the last successful Scan.
func (s *Scanner) Triple() Triple {
	return s.cur
}

// Err returns the first read error, if any. Reaching the end of input
// is not an error.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Stats returns the counts so far.
func (s *Scanner) Stats() Stats {
	return s.stats
}
