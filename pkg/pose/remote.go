package pose

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PostureGuard/internal/entity"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type remoteLandmark struct {
	Name       string   `json:"name"`
	Index      *int     `json:"index,omitempty"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility,omitempty"`
}

type remoteResponse struct {
	Landmarks []remoteLandmark `json:"landmarks"`
	Error     string           `json:"error,omitempty"`
}

// RemoteEstimator sends frames to a pose sidecar over a websocket and reads
// one JSON reply per frame. Round trips share a single connection and are
// serialised.
type RemoteEstimator struct {
	log           *logrus.Logger
	url           string
	minVisibility float64

	conn         *websocket.Conn
	mu           sync.Mutex
	closed       bool
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewRemoteEstimator(log *logrus.Logger, url string, minVisibility float64) *RemoteEstimator {
	e := &RemoteEstimator{
		log:           log,
		url:           url,
		minVisibility: minVisibility,
		pingInterval:  30 * time.Second,
		readTimeout:   10 * time.Second,
		writeTimeout:  5 * time.Second,
	}

	go e.connectInBackground()

	return e
}

func (e *RemoteEstimator) connectInBackground() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.conn != nil || e.closed {
		return
	}
	if err := e.dialLocked(); err != nil {
		e.log.Warnf("Initial connection to pose service failed: %v. Will retry on demand.", err)
		return
	}
	e.log.Infof("Connected to pose service at %s", e.url)
}

func (e *RemoteEstimator) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn != nil
}

func (e *RemoteEstimator) dialLocked() error {
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}

	if e.url == "" {
		return fmt.Errorf("%w: url not configured", ErrNotConnected)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(e.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", e.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(e.writeTimeout)); err != nil {
			e.log.Debugf("Error sending pong to pose service: %v", err)
		}
		return nil
	})

	e.conn = conn
	go e.keepAlive(conn)

	return nil
}

func (e *RemoteEstimator) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(e.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		e.mu.Lock()
		if e.conn != conn {
			e.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(e.writeTimeout))
		if err != nil {
			e.log.Warnf("Ping to pose service failed, marking connection as dead: %v", err)
			e.conn = nil
			conn.Close()
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
	}
}

func (e *RemoteEstimator) Estimate(ctx context.Context, f *entity.Frame) (entity.LandmarkSet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrNotConnected
	}

	if e.conn == nil {
		if err := e.dialLocked(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
		}
	}
	conn := e.conn

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn.SetWriteDeadline(e.deadline(ctx, e.writeTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, f.Data); err != nil {
		e.dropLocked(conn)
		return nil, fmt.Errorf("error sending frame to pose service: %w", err)
	}

	conn.SetReadDeadline(e.deadline(ctx, e.readTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		e.dropLocked(conn)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("error reading pose service reply: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var resp remoteResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return nil, fmt.Errorf("error unmarshaling pose reply: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServiceFailure, resp.Error)
	}

	landmarks := e.toLandmarkSet(resp.Landmarks)

	e.log.WithFields(logrus.Fields{
		"frame_bytes": len(f.Data),
		"received":    len(resp.Landmarks),
		"kept":        len(landmarks),
	}).Debug("Pose estimation completed")

	return landmarks, nil
}

func (e *RemoteEstimator) toLandmarkSet(raw []remoteLandmark) entity.LandmarkSet {
	set := make(entity.LandmarkSet, len(raw))
	for _, lm := range raw {
		name := entity.LandmarkName(lm.Name)
		if lm.Name == "" && lm.Index != nil {
			n, ok := entity.LandmarkAt(*lm.Index)
			if !ok {
				continue
			}
			name = n
		}
		if !entity.IsValidLandmarkName(string(name)) {
			continue
		}

		visibility := 1.0
		if lm.Visibility != nil {
			visibility = *lm.Visibility
		}

		set[name] = entity.Point{X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: visibility}
	}
	return set.FilterVisibility(e.minVisibility)
}

func (e *RemoteEstimator) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

func (e *RemoteEstimator) dropLocked(conn *websocket.Conn) {
	if e.conn == conn {
		e.conn = nil
	}
	conn.Close()
}

func (e *RemoteEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	return err
}
