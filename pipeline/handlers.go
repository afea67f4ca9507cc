package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/joeycumines/netloop/netlog"
)

// ErrFrameTooLarge is returned by a FrameDecoderHandler's ReadFrame when an
// incoming frame's declared length exceeds the negotiated max frame size.
var ErrFrameTooLarge = errors.New("pipeline: frame exceeds max frame size")

// FrameDecoderHandler reads WebSocket frames off a Channel's connection,
// unmasking client frames and enforcing a maximum frame size. Grounded on
// ice-blockchain-subzero's read loop (server/ws/ws.go's handler.Read), which
// uses the same gobwas/ws/wsutil primitives, generalized into an installable
// pipeline stage instead of an inline for-loop.
type FrameDecoderHandler struct {
	maxFrameSize uint32
}

// NewFrameDecoderHandler returns a decoder enforcing maxFrameSize.
func NewFrameDecoderHandler(maxFrameSize uint32) *FrameDecoderHandler {
	return &FrameDecoderHandler{maxFrameSize: maxFrameSize}
}

func (*FrameDecoderHandler) Name() string { return "frame-decoder" }

// ReadFrame reads and validates the next frame from ch, server-side
// (masked) framing assumed.
func (h *FrameDecoderHandler) ReadFrame(ch *Channel) (ws.Frame, error) {
	frame, err := ws.ReadFrame(ch.Conn)
	if err != nil {
		return ws.Frame{}, errors.Wrap(err, "pipeline: reading frame")
	}
	if uint32(len(frame.Payload)) > h.maxFrameSize {
		return ws.Frame{}, ErrFrameTooLarge
	}
	if frame.Header.Masked {
		ws.Cipher(frame.Payload, frame.Header.Mask, 0)
		frame.Header.Masked = false
	}
	return frame, nil
}

// FrameEncoderHandler writes unmasked, server-to-client WebSocket frames.
type FrameEncoderHandler struct{}

// NewFrameEncoderHandler returns a server-side (unmasked) frame encoder.
func NewFrameEncoderHandler() *FrameEncoderHandler { return &FrameEncoderHandler{} }

func (*FrameEncoderHandler) Name() string { return "frame-encoder" }

// WriteText writes p as a single, final text frame.
func (*FrameEncoderHandler) WriteText(ch *Channel, p []byte) error {
	return errors.Wrap(wsutil.WriteServerMessage(ch.Conn, ws.OpText, p), "pipeline: writing text frame")
}

// WriteBinary writes p as a single, final binary frame.
func (*FrameEncoderHandler) WriteBinary(ch *Channel, p []byte) error {
	return errors.Wrap(wsutil.WriteServerMessage(ch.Conn, ws.OpBinary, p), "pipeline: writing binary frame")
}

// WriteClose writes a close frame with the given status code and reason.
func (*FrameEncoderHandler) WriteClose(ch *Channel, code ws.StatusCode, reason string) error {
	msg := ws.NewCloseFrameBody(code, reason)
	return errors.Wrap(wsutil.WriteServerMessage(ch.Conn, ws.OpClose, msg), "pipeline: writing close frame")
}

// ProtocolErrorHandler classifies close/read errors the way
// ice-blockchain-subzero's handler.Read does: normal closures are quiet,
// anything else is logged. Installed automatically by an Upgrader whose
// automaticErrorHandling option is left at its default of true.
type ProtocolErrorHandler struct{}

// NewProtocolErrorHandler returns a handler that logs abnormal close codes.
func NewProtocolErrorHandler() *ProtocolErrorHandler { return &ProtocolErrorHandler{} }

func (*ProtocolErrorHandler) Name() string { return "protocol-error" }

// Observe is silent for a wsutil.ClosedError carrying one of four close
// codes (normal closure, going-away, abnormal closure — the code that
// stands for a peer that dropped the TCP connection outright — and
// no-status), and logs every other non-nil error.
func (*ProtocolErrorHandler) Observe(err error) {
	if err == nil {
		return
	}
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		switch closed.Code {
		case ws.StatusNormalClosure, ws.StatusGoingAway, ws.StatusAbnormalClosure, ws.StatusNoStatusRcvd:
			return
		}
	}
	netlog.L().Err().Err(err).Log("pipeline: unexpected websocket close")
}
