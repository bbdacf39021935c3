package sdk

import (
	"context"
	"io"
	"net/http"
	"sync"
)

const StatusStreamPath = "/servers/status/all"

// StatusStream is an open connection to the roster event stream.
type StatusStream struct {
	body      io.ReadCloser
	scanner   *EventScanner
	closeOnce sync.Once
	closeErr  error
}

// OpenStatusStream connects to the all-servers status stream. The stream
// stays open until ctx is cancelled, the gateway ends it, or Close is called.
func (c *Client) OpenStatusStream(ctx context.Context) (*StatusStream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, StatusStreamPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &StatusStream{
		body:    resp.Body,
		scanner: NewEventScanner(resp.Body),
	}, nil
}

// Next blocks for the next event. ok is false once the stream has ended;
// err is nil for a clean end of stream.
func (s *StatusStream) Next() (Event, bool, error) {
	if !s.scanner.Next() {
		return Event{}, false, s.scanner.Err()
	}
	return s.scanner.Event(), true, nil
}

// Close is safe to call more than once; the body is closed exactly once.
func (s *StatusStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
