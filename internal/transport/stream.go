package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// DefaultProbeSize is the size sentinel a stream starts with until the
	// first response reveals the real Content-Length.
	DefaultProbeSize = 9437184 // 9 MiB

	// ChunkSize is the fixed read granularity of a stream.
	ChunkSize = 32768 // 32 KiB

	// The practically-unbounded upper range bound. A single open-ended GET
	// streams the whole remaining content in one pass; the bound only
	// exists so resumed requests are valid range expressions.
	rangeUpperBound = "99999999999"
)

// StreamOptions tune one stream. A zero Timeout falls back to the client's
// configured timeout. MaxRetries is taken as-is: 0 means a single attempt
// per range request.
type StreamOptions struct {
	Timeout    time.Duration
	MaxRetries int
	StartByte  int64
}

// Stream is a pull-based cursor over the content at a URL. Chunks come out
// strictly in byte order; the caller paces the download entirely by how
// fast it calls Next. Close releases the underlying connection when the
// caller stops early.
type Stream struct {
	c   *Client
	ctx context.Context
	url string

	timeout    time.Duration
	maxRetries int

	downloaded int64
	fileSize   int64
	sizeKnown  bool

	body   io.ReadCloser
	cancel context.CancelFunc
	buf    []byte
	err    error
	closed bool
}

// Stream opens a lazy chunked download of rawurl. Invalid URLs surface on
// the first Next call, before any network activity.
func (c *Client) Stream(ctx context.Context, rawurl string, opts *StreamOptions) *Stream {
	s := &Stream{
		c:          c,
		ctx:        ctx,
		url:        rawurl,
		timeout:    c.cfg.Timeout,
		maxRetries: c.cfg.MaxRetries,
		fileSize:   DefaultProbeSize,
		buf:        make([]byte, ChunkSize),
	}
	if opts != nil {
		if opts.Timeout > 0 {
			s.timeout = opts.Timeout
		}
		s.maxRetries = opts.MaxRetries
		s.downloaded = opts.StartByte
	}
	return s
}

// Next returns the next chunk, at most ChunkSize bytes, or io.EOF when the
// content is exhausted. Every chunk except the last is exactly ChunkSize
// long. An error other than io.EOF is sticky.
func (s *Stream) Next() ([]byte, error) {
	if s.closed {
		return nil, io.EOF
	}
	if s.err != nil {
		return nil, s.err
	}

	for {
		if s.body == nil {
			if s.done() {
				s.err = io.EOF
				return nil, io.EOF
			}
			if err := s.request(); err != nil {
				s.err = err
				return nil, err
			}
		}

		n, err := io.ReadFull(s.body, s.buf)
		if n > 0 {
			s.downloaded += int64(n)
			chunk := make([]byte, n)
			copy(chunk, s.buf[:n])
			if err != nil {
				s.closeBody()
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
					// Hand out what we got, surface the error on the
					// next call.
					s.err = err
				} else if !s.sizeKnown {
					// Natural end of the only response we will get.
					s.err = io.EOF
				}
			}
			return chunk, nil
		}

		if err == nil {
			continue
		}

		// This body is finished. If the declared size says there is more,
		// the outer loop re-requests from the current offset; when the size
		// was never discovered, the natural end of the response ends the
		// stream.
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.closeBody()
			if !s.sizeKnown {
				s.err = io.EOF
				return nil, io.EOF
			}
			continue
		}

		s.err = err
		s.closeBody()
		return nil, err
	}
}

// done reports whether the declared size has been reached. Before the size
// is known the sentinel keeps the loop alive.
func (s *Stream) done() bool {
	if !s.sizeKnown {
		return false
	}
	return s.downloaded >= s.fileSize
}

// request issues the ranged GET for the current offset, retrying transient
// failures until the budget of maxRetries+1 total attempts is spent.
func (s *Stream) request() error {
	offset := s.downloaded
	tries := 0

	for {
		if tries >= s.maxRetries+1 {
			return &MaxRetriesError{URL: s.url, Attempts: tries}
		}
		tries++

		resp, err := s.attempt(offset)
		if err == nil {
			if !s.sizeKnown {
				s.discoverSize(resp, offset)
			}
			s.body = resp.Body
			return nil
		}

		// The caller going away is not a transient server condition.
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		if !isTransient(err) {
			return err
		}
		s.c.log.Debug("transient error on %s (attempt %d): %v", s.url, tries, err)
	}
}

// attempt performs one GET. The timeout covers the window up to response
// headers; once a response is streaming, the body read is only bounded by
// the caller's context, so large payloads are not cut off mid-transfer.
func (s *Stream) attempt(offset int64) (*http.Response, error) {
	actx, acancel := context.WithCancel(s.ctx)
	timer := time.AfterFunc(s.timeout, acancel)

	var headers map[string]string
	if offset != 0 {
		headers = map[string]string{
			"Range": "bytes=" + strconv.FormatInt(offset, 10) + "-" + rangeUpperBound,
		}
	}

	resp, err := s.c.Do(actx, http.MethodGet, s.url, headers, nil)
	if err != nil {
		timer.Stop()
		acancel()
		// Our own header timer firing looks like a cancellation; the
		// parent context is checked by the caller, so report it as a
		// deadline.
		if errors.Is(err, context.Canceled) && s.ctx.Err() == nil {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}

	timer.Stop()

	if resp.StatusCode >= 400 {
		resp.Body.Close()
		acancel()
		return nil, &StatusError{URL: s.url, Code: resp.StatusCode}
	}

	// Keep the attempt context alive for the body; Close cancels it.
	s.cancel = acancel
	return resp, nil
}

// discoverSize reads the Content-Length of the first successful response.
// A ranged response declares the remaining length, so the total is the
// request offset plus the header value. Absent or malformed lengths are
// logged and left unknown.
func (s *Stream) discoverSize(resp *http.Response, offset int64) {
	cl := resp.Header.Get("Content-Length")
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || size < 0 {
		s.c.log.Error("no usable Content-Length for %s (%q)", s.url, cl)
		return
	}
	s.fileSize = offset + size
	s.sizeKnown = true
	s.downloaded = offset
}

func (s *Stream) closeBody() {
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Close releases the in-flight connection. Safe to call at any point and
// more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeBody()
	return nil
}

// isTransient reports whether err is a per-attempt timeout or incomplete
// read, the two conditions worth retrying. Anything else propagates.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
