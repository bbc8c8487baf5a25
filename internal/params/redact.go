package params

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"
)

// Redactor masks secret values in free text.
type Redactor struct {
	secrets []string
}

// NewRedactor masks every non-empty string in secrets. Longer secrets are
// replaced first so that a secret containing another is fully masked.
func NewRedactor(secrets []string) *Redactor {
	var out []string
	for _, s := range secrets {
		if s != "" {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return &Redactor{secrets: out}
}

// Redact returns s with every secret replaced by Redacted.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, Redacted)
	}
	return s
}

// Writer wraps w so that complete lines are written with secrets masked.
// Partial lines are buffered until a newline or Close.
func (r *Redactor) Writer(w io.Writer) io.WriteCloser {
	return &redactingWriter{r: r, w: w}
}

type redactingWriter struct {
	mu  sync.Mutex
	r   *Redactor
	w   io.Writer
	buf bytes.Buffer
}

func (rw *redactingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	rw.buf.Write(p)
	for {
		i := bytes.IndexByte(rw.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := rw.buf.Next(i + 1)
		if _, err := io.WriteString(rw.w, rw.r.Redact(string(line))); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Close flushes any buffered partial line.
func (rw *redactingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.buf.Len() == 0 {
		return nil
	}
	_, err := io.WriteString(rw.w, rw.r.Redact(rw.buf.String()))
	rw.buf.Reset()
	return err
}
