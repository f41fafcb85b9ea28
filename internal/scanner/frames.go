package scanner

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

// FrameSource is a live camera stream abstracted to a sequence of frames.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// MJPEGSource reads frames from an MJPEG-over-HTTP camera stream
// (multipart/x-mixed-replace), the usual surface of USB and IP camera
// daemons.
type MJPEGSource struct {
	url    string
	client *http.Client
	resp   *http.Response
	parts  *multipart.Reader
}

// NewMJPEGSource creates a source for the given stream URL. The client has
// no overall timeout since the stream is long-lived.
func NewMJPEGSource(streamURL string) *MJPEGSource {
	return &MJPEGSource{
		url:    streamURL,
		client: &http.Client{},
	}
}

// Open connects to the stream. The context should outlive the scan session;
// the adapter passes its run context.
func (s *MJPEGSource) Open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("build stream request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream answered status %d", resp.StatusCode)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("not an mjpeg stream: content-type %q", resp.Header.Get("Content-Type"))
	}
	s.resp = resp
	s.parts = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Next blocks until the stream delivers the next frame.
func (s *MJPEGSource) Next(ctx context.Context) (image.Image, error) {
	if s.parts == nil {
		return nil, fmt.Errorf("stream not open")
	}
	part, err := s.parts.NextPart()
	if err != nil {
		return nil, fmt.Errorf("next frame: %w", err)
	}
	defer part.Close()
	img, err := jpeg.Decode(part)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Close releases the stream connection. Safe to call when not open.
func (s *MJPEGSource) Close() error {
	if s.resp != nil {
		err := s.resp.Body.Close()
		s.resp = nil
		s.parts = nil
		return err
	}
	return nil
}
