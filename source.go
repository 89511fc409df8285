package downstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultChunkSize is the read size used by Copy when none is given.
const DefaultChunkSize = 4096

// Copy reads r in chunks of chunkSize bytes, writes each chunk to dst as a
// fragment, and calls End at EOF. Chunks carry no alignment guarantees,
// which is exactly what the Stream expects.
func Copy(ctx context.Context, dst *Stream, r io.Reader, chunkSize int) error {
	if dst == nil {
		return fmt.Errorf("copy: %w", ErrNilStream)
	}
	if r == nil {
		return fmt.Errorf("copy: %w", ErrNilReader)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if werr := dst.Write(string(buf[:n])); werr != nil {
				return fmt.Errorf("copy: %w", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("copy: read: %w", err)
		}
	}
	return dst.End()
}

// SimulateRequest configures Simulate.
type SimulateRequest struct {
	Reader    io.Reader
	Stream    *Stream
	ChunkSize int
	Delay     time.Duration // pause between chunks
}

// Simulate replays r into the Stream in fixed-size chunks with a delay
// between chunks, mimicking the pacing of a live text-generation source.
func Simulate(ctx context.Context, req SimulateRequest) error {
	if req.Stream == nil {
		return fmt.Errorf("simulate: %w", ErrNilStream)
	}
	if req.Reader == nil {
		return fmt.Errorf("simulate: %w", ErrNilReader)
	}
	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 16
	}
	buf := make([]byte, chunkSize)
	first := true
	for {
		n, err := req.Reader.Read(buf)
		if n > 0 {
			if !first && req.Delay > 0 {
				timer := time.NewTimer(req.Delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
			first = false
			if werr := req.Stream.Write(string(buf[:n])); werr != nil {
				return fmt.Errorf("simulate: %w", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("simulate: read: %w", err)
		}
	}
	return req.Stream.End()
}

// FetchURL fetches a markdown document over HTTP(S) and streams the
// response body into dst as it arrives.
func FetchURL(ctx context.Context, dst *Stream, url string, client *http.Client) error {
	if dst == nil {
		return fmt.Errorf("fetch: %w", ErrNilStream)
	}
	if url == "" {
		return fmt.Errorf("fetch: URL is required")
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request: %w", err)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("fetch: unsupported scheme %q", req.URL.Scheme)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch: status %s", resp.Status)
	}
	return Copy(ctx, dst, resp.Body, DefaultChunkSize)
}
