package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/sirupsen/logrus"
)

// Request types
const (
	RequestStart  = "start"
	RequestFrame  = "frame"
	RequestCancel = "cancel"
	RequestReset  = "reset"
	RequestStatus = "status"
)

// Request is one JSON line sent by a client
type Request struct {
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
	// Landmarks of the frame. When empty and Image is set, the landmark
	// service is asked to detect them.
	Landmarks   models.Landmarks `json:"landmarks,omitempty"`
	Width       int              `json:"width,omitempty"`
	Height      int              `json:"height,omitempty"`
	TimestampMs int64            `json:"timestamp_ms,omitempty"`
	// Image is the JPEG encoded frame
	Image []byte `json:"image,omitempty"`
}

// Response is the JSON line answering every request
type Response struct {
	SessionID string           `json:"session_id,omitempty"`
	Status    *liveness.Status `json:"status,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// LandmarkDetector finds face landmarks in a frame
type LandmarkDetector interface {
	Detect(ctx context.Context, img image.Image) (models.Landmarks, bool, error)
}

// Server speaks the JSON lines protocol. Each connection drives at most one
// session at a time; closing the connection discards it.
type Server struct {
	manager  *liveness.Manager
	detector LandmarkDetector
	logger   *logrus.Logger
}

// NewServer creates a protocol server. detector may be nil, in which case
// frames must carry landmarks.
func NewServer(manager *liveness.Manager, detector LandmarkDetector, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Server{
		manager:  manager,
		detector: detector,
		logger:   logger,
	}
}

// Serve accepts connections until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Errorf("Accept error: %v", err)
			continue
		}

		go s.HandleConn(ctx, conn)
	}
}

// HandleConn serves one client connection
func (s *Server) HandleConn(ctx context.Context, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() { _ = conn.Close() }()

	var sessionID string
	defer func() {
		if sessionID != "" {
			_, _ = s.manager.Remove(sessionID)
		}
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debugf("Read error: %v", err)
			}
			return
		}

		resp := s.handle(ctx, &sessionID, &req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Debugf("Write error: %v", err)
			return
		}
	}
}

func (s *Server) handle(ctx context.Context, sessionID *string, req *Request) *Response {
	switch req.Type {
	case RequestStart:
		if *sessionID != "" {
			_, _ = s.manager.Remove(*sessionID)
			*sessionID = ""
		}
		subject := req.Subject
		if subject == "" {
			subject = "anonymous"
		}
		id, st, err := s.manager.Start(subject)
		if err != nil {
			s.logger.Warnf("Refused session for %s: %v", subject, err)
			return reply("", nil, err)
		}
		*sessionID = id
		return &Response{SessionID: id, Status: &st}

	case RequestFrame:
		if *sessionID == "" {
			return reply("", nil, liveness.ErrNoSession)
		}
		lm, meta, err := s.frame(ctx, req)
		if err != nil {
			return reply(*sessionID, nil, err)
		}
		st, err := s.manager.Submit(*sessionID, lm, meta)
		return reply(*sessionID, &st, err)

	case RequestCancel:
		if *sessionID == "" {
			return reply("", nil, liveness.ErrNoSession)
		}
		st, err := s.manager.Cancel(*sessionID)
		return reply(*sessionID, &st, err)

	case RequestStatus:
		if *sessionID == "" {
			return reply("", nil, liveness.ErrNoSession)
		}
		st, err := s.manager.Status(*sessionID)
		return reply(*sessionID, &st, err)

	case RequestReset:
		if *sessionID != "" {
			_, _ = s.manager.Remove(*sessionID)
			*sessionID = ""
		}
		return &Response{}

	default:
		return &Response{Error: fmt.Sprintf("unknown request type %q", req.Type)}
	}
}

// frame turns a request into engine input, asking the landmark service when
// only pixels were sent
func (s *Server) frame(ctx context.Context, req *Request) (models.Landmarks, liveness.FrameMeta, error) {
	meta := liveness.FrameMeta{Width: req.Width, Height: req.Height}
	if req.TimestampMs > 0 {
		meta.Timestamp = time.UnixMilli(req.TimestampMs)
	}

	if len(req.Image) > 0 {
		img, err := jpeg.Decode(bytes.NewReader(req.Image))
		if err != nil {
			return nil, meta, fmt.Errorf("failed to decode frame: %w", err)
		}
		meta.Image = img
	}

	if len(req.Landmarks) > 0 || meta.Image == nil {
		return req.Landmarks, meta, nil
	}

	if s.detector == nil {
		return nil, meta, errors.New("frame has no landmarks and no landmark service is configured")
	}

	lm, found, err := s.detector.Detect(ctx, meta.Image)
	if err != nil {
		return nil, meta, fmt.Errorf("landmark detection failed: %w", err)
	}
	if !found {
		return nil, meta, nil
	}
	return lm, meta, nil
}

func reply(sessionID string, st *liveness.Status, err error) *Response {
	resp := &Response{SessionID: sessionID}
	if st != nil && st.Kind != "" {
		resp.Status = st
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
