package server

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jcdorr003/marty-emulator/internal/handler"
	"github.com/jcdorr003/marty-emulator/internal/metrics"
	"github.com/jcdorr003/marty-emulator/internal/ricserial"
	"github.com/jcdorr003/marty-emulator/internal/robot"
	"github.com/jcdorr003/marty-emulator/internal/ws"
	"go.uber.org/zap"
)

// session serves one connection. It owns its robot; nothing else references it.
type session struct {
	srv    *Server
	conn   net.Conn
	client uint64
	logger *zap.SugaredLogger

	robot      *robot.Robot
	dispatcher *handler.Dispatcher
}

func newSession(srv *Server, conn net.Conn, client uint64) *session {
	return &session{
		srv:    srv,
		conn:   conn,
		client: client,
		logger: srv.logger.With(
			"session", uuid.NewString(),
			"client", client,
			"remote", conn.RemoteAddr().String(),
		),
	}
}

func (s *session) run() {
	defer s.conn.Close()

	s.logger.Infow("🔌 Client connected")

	reader, ok := s.handshake()
	if !ok {
		return
	}

	s.robot = robot.New(s.client, metrics.SerialFor(s.srv.opts.HostID, s.client))
	s.dispatcher = handler.New(s.robot, s.logger)

	frames := 0
	reason := s.loop(reader, &frames)

	s.logger.Infow("👋 Client disconnected",
		"reason", reason,
		"frames", frames,
		"commands", s.robot.Commands,
		"robot", s.robot.Info(),
	)
}

func (s *session) handshake() (io.Reader, bool) {
	_ = s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	hs, err := ws.Negotiate(s.conn, s.srv.opts.Mode)
	_ = s.conn.SetReadDeadline(time.Time{})

	switch {
	case errors.Is(err, ws.ErrNoRequest):
		s.logger.Debugw("Connection closed before handshake")
		s.recordHandshake("failed")
		return nil, false
	case errors.Is(err, ws.ErrMissingKey):
		s.logger.Warnw("⛔ Handshake rejected in strict mode", "request", hs.RequestLine)
		s.recordHandshake("rejected")
		return nil, false
	case err != nil:
		s.logger.Warnw("Handshake failed", "error", err)
		s.recordHandshake("failed")
		return nil, false
	}

	if hs.Fallback {
		s.logger.Infow("⚠️  Non-standard handshake accepted (no Sec-WebSocket-Key)", "request", hs.RequestLine)
		s.recordHandshake("fallback")
	} else {
		s.logger.Infow("🤝 Handshake accepted", "request", hs.RequestLine)
		s.recordHandshake("standard")
	}

	return bufio.NewReader(io.MultiReader(bytes.NewReader(hs.Leftover), s.conn)), true
}

// loop processes frames strictly in order; a response is fully written before the next read
func (s *session) loop(r io.Reader, frames *int) string {
	for {
		if d := s.srv.opts.IdleTimeout; d > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(d))
		}

		frame, err := ws.ReadFrame(r, s.srv.opts.MaxFrameBytes)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "peer closed"
			}
			s.logger.Debugw("Read failed", "error", err)
			return "read error"
		}

		*frames++
		s.recordFrame(frame.Opcode)
		s.logger.Debugw("📥 Frame received", "opcode", frame.Opcode, "bytes", len(frame.Payload), "final", frame.Final)

		switch frame.Opcode {
		case ws.OpClose:
			_ = s.write(frame.Payload, ws.OpClose)
			return "close frame"
		case ws.OpPing:
			if err := s.write(frame.Payload, ws.OpPong); err != nil {
				return "write error"
			}
			continue
		case ws.OpPong:
			continue
		}

		cmd := ricserial.Parse(frame.Payload)
		resp := s.dispatcher.Dispatch(cmd)

		out, err := resp.Encode()
		if err != nil {
			s.logger.Errorw("Failed to encode response", "error", err, "kind", resp.Kind)
			out, _ = ricserial.Error(resp.ID, "Internal error").Encode()
		}

		if err := s.write(out, ws.OpBinary); err != nil {
			s.logger.Debugw("Write failed", "error", err)
			return "write error"
		}

		s.recordCommand(cmd.Kind(), resp.Kind)
		s.logger.Debugw("📤 Response sent", "id", resp.ID, "kind", resp.Kind, "bytes", len(out), "robot", s.robot.Info())
	}
}

func (s *session) write(payload []byte, op ws.Opcode) error {
	if d := s.srv.opts.WriteTimeout; d > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(d))
	}
	return ws.WriteFrame(s.conn, payload, op)
}

func (s *session) recordHandshake(outcome string) {
	if s.srv.recorder != nil {
		s.srv.recorder.Handshake(outcome)
	}
}

func (s *session) recordFrame(op ws.Opcode) {
	if s.srv.recorder != nil {
		s.srv.recorder.Frame(op.String())
	}
}

func (s *session) recordCommand(kind ricserial.Kind, resp ricserial.ResponseKind) {
	if s.srv.recorder != nil {
		s.srv.recorder.Command(kind.String(), resp.String())
	}
}
