package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// Segmented payloads are served as server-defined sequential segments,
// selected by an sq query parameter. Segment 0 carries a header-like text
// block declaring how many further segments exist.
var segmentCountRe = regexp.MustCompile(`Segment-Count: (\d+)`)

// segmentURL returns rawurl with its sq query parameter set to seq.
func segmentURL(rawurl string, seq int) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", ErrInvalidURL
	}
	q := u.Query()
	q.Set("sq", strconv.Itoa(seq))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseSegmentCount scans the CRLF-delimited lines of segment 0 for the
// Segment-Count marker. Its absence is an error for both the stream and
// the size prober; the upstream format always includes it for segmented
// content.
func parseSegmentCount(data []byte) (int, error) {
	for _, line := range bytes.Split(data, []byte("\r\n")) {
		if m := segmentCountRe.FindSubmatch(line); m != nil {
			return strconv.Atoi(string(m[1]))
		}
	}
	return 0, &PatternNotFoundError{Pattern: segmentCountRe.String(), Where: "segment 0"}
}

// SeqStream is a pull-based cursor over a segmented payload: segment 0
// first (buffered to learn the segment count), then segments 1..N in
// order. Chunks come out exactly as the underlying streams yield them.
type SeqStream struct {
	c    *Client
	ctx  context.Context
	url  string
	opts StreamOptions

	cur      *Stream
	seg      int
	segCount int
	header   []byte
	err      error
}

// SeqStream opens a lazy segmented download. Invalid URLs surface on the
// first Next call, before any network activity.
func (c *Client) SeqStream(ctx context.Context, rawurl string, opts *StreamOptions) *SeqStream {
	s := &SeqStream{
		c:   c,
		ctx: ctx,
		url: rawurl,
	}
	if opts != nil {
		s.opts = *opts
	} else {
		s.opts.MaxRetries = c.cfg.MaxRetries
	}
	s.opts.StartByte = 0 // segments are always read whole

	first, err := segmentURL(rawurl, 0)
	if err != nil {
		s.err = err
		return s
	}
	s.cur = c.Stream(ctx, first, &s.opts)
	return s
}

// Next returns the next chunk across all segments, or io.EOF when the last
// declared segment is exhausted.
func (s *SeqStream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}

	for {
		chunk, err := s.cur.Next()
		if err == nil {
			if s.seg == 0 {
				s.header = append(s.header, chunk...)
			}
			return chunk, nil
		}
		if err != io.EOF {
			s.err = err
			return nil, err
		}

		// Current segment finished.
		if s.seg == 0 {
			count, perr := parseSegmentCount(s.header)
			if perr != nil {
				s.err = perr
				return nil, perr
			}
			s.segCount = count
			s.header = nil
		}

		if s.seg >= s.segCount {
			s.err = io.EOF
			return nil, io.EOF
		}

		s.seg++
		next, uerr := segmentURL(s.url, s.seg)
		if uerr != nil {
			s.err = uerr
			return nil, uerr
		}
		s.cur = s.c.Stream(s.ctx, next, &s.opts)
	}
}

// Close releases whatever segment stream is in flight.
func (s *SeqStream) Close() error {
	if s.cur != nil {
		return s.cur.Close()
	}
	return nil
}

// SeqFilesize computes the total size of a segmented payload: the byte
// length of segment 0's body plus the HEAD-reported Content-Length of each
// further segment. Memoized per URL for the lifetime of the client.
func (c *Client) SeqFilesize(ctx context.Context, rawurl string) (int64, error) {
	if v, ok := c.seqSizeCache.Load(rawurl); ok {
		return v.(int64), nil
	}

	first, err := segmentURL(rawurl, 0)
	if err != nil {
		return 0, err
	}

	resp, err := c.Do(ctx, http.MethodGet, first, nil, nil)
	if err != nil {
		return 0, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return 0, err
	}
	if resp.StatusCode >= 400 {
		return 0, &StatusError{URL: first, Code: resp.StatusCode}
	}

	total := int64(len(body))

	count, err := parseSegmentCount(body)
	if err != nil {
		return 0, err
	}

	for seq := 1; seq <= count; seq++ {
		su, err := segmentURL(rawurl, seq)
		if err != nil {
			return 0, err
		}
		size, err := c.Filesize(ctx, su)
		if err != nil {
			return 0, err
		}
		total += size
	}

	actual, _ := c.seqSizeCache.LoadOrStore(rawurl, total)
	return actual.(int64), nil
}
