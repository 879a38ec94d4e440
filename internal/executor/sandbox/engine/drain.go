package engine

import (
	"bytes"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

const drainChunkSize = 32 * 1024

// drainer captures at most limit bytes of one stream and keeps reading
// past the limit so the writer never blocks on a full pipe.
type drainer struct {
	limit    int64
	buf      bytes.Buffer
	total    int64
	breached atomic.Bool
	breachCh chan struct{}
	once     sync.Once
}

func newDrainer(limit int64) *drainer {
	if limit < 0 {
		limit = 0
	}
	return &drainer{limit: limit, breachCh: make(chan struct{})}
}

// breach is closed once the stream produced more than limit bytes.
func (d *drainer) breach() <-chan struct{} {
	return d.breachCh
}

func (d *drainer) overflowed() bool {
	return d.breached.Load()
}

// discarded is the number of bytes read past the limit. Like bytes, it
// must only be called after drain returned.
func (d *drainer) discarded() int64 {
	return d.total - int64(d.buf.Len())
}

// bytes must only be called after drain returned.
func (d *drainer) bytes() []byte {
	return d.buf.Bytes()
}

// drain reads r until EOF or until r is closed underneath it.
func (d *drainer) drain(r io.Reader) error {
	chunk := make([]byte, drainChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			d.accept(chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (d *drainer) accept(p []byte) {
	d.total += int64(len(p))
	room := d.limit - int64(d.buf.Len())
	if room >= int64(len(p)) {
		d.buf.Write(p)
		return
	}
	if room > 0 {
		d.buf.Write(p[:room])
	}
	d.once.Do(func() {
		d.breached.Store(true)
		close(d.breachCh)
	})
}
