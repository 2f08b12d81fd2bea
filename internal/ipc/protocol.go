// Package ipc carries invocations between clients and the server over a
// Unix domain socket. Frames are length-prefixed, LittleEndian, with a
// fixed header and a JSON body.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/google/uuid"

	"github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/types"
)

const (
	RequestIDSize    = 8
	CommandSize      = 1
	InvocationIDSize = 16
	BodyLenSize      = 4

	MaxFrameSize = 16 * 1024 * 1024
)

const (
	CmdInvoke  = 1
	CmdCompile = 2
	CmdCatalog = 3
	CmdStats   = 4
	CmdMetrics = 5
)

// RequestFrame is one client request. The invocation identity travels in
// the header so the server can deduplicate retransmitted invokes even when
// the body fails to parse.
type RequestFrame struct {
	RequestID    uint64
	Command      uint8
	InvocationID types.InvocationID
	Body         []byte
}

// ResponseFrame is the server's answer to one request. Status mirrors the
// code inside the body so clients can branch without decoding it.
type ResponseFrame struct {
	RequestID uint64
	Status    types.StatusCode
	Body      []byte
}

// InvokeBody is the JSON body of a CmdInvoke request.
type InvokeBody struct {
	Procedure string `json:"procedure"`
	Role      string `json:"role,omitempty"`
	Args      []any  `json:"args"`
	TimeoutMS int64  `json:"timeout_ms,omitempty"`
}

// CompileBody is the JSON body of a CmdCompile request.
type CompileBody struct {
	Procedure string `json:"procedure"`
	Clauses   string `json:"clauses"`
}

// CatalogEntry is one procedure in a CmdCatalog response body.
type CatalogEntry struct {
	Procedure string   `json:"procedure"`
	Spec      string   `json:"spec"`
	Roles     []string `json:"roles,omitempty"`
}

func EncodeRequest(frame *RequestFrame) ([]byte, error) {
	size := RequestIDSize + CommandSize + InvocationIDSize + BodyLenSize + len(frame.Body)
	if size > MaxFrameSize {
		return nil, errors.ErrFrameTooLarge
	}

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], frame.RequestID)
	offset += RequestIDSize

	buf[offset] = frame.Command
	offset += CommandSize

	copy(buf[offset:], frame.InvocationID[:])
	offset += InvocationIDSize

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(frame.Body)))
	offset += BodyLenSize

	if len(frame.Body) > 0 {
		copy(buf[offset:], frame.Body)
	}

	return buf, nil
}

func DecodeRequest(data []byte) (*RequestFrame, error) {
	if len(data) < RequestIDSize+CommandSize+InvocationIDSize+BodyLenSize {
		return nil, errors.ErrInvalidFrame
	}

	offset := 0
	frame := &RequestFrame{}

	frame.RequestID = binary.LittleEndian.Uint64(data[offset:])
	offset += RequestIDSize

	frame.Command = data[offset]
	offset += CommandSize

	id, err := uuid.FromBytes(data[offset : offset+InvocationIDSize])
	if err != nil {
		return nil, errors.ErrInvalidFrame
	}
	frame.InvocationID = id
	offset += InvocationIDSize

	bodyLen := binary.LittleEndian.Uint32(data[offset:])
	offset += BodyLenSize

	if offset+int(bodyLen) != len(data) {
		return nil, errors.ErrInvalidFrame
	}

	if bodyLen > 0 {
		frame.Body = make([]byte, bodyLen)
		copy(frame.Body, data[offset:])
	}

	return frame, nil
}

func EncodeResponse(frame *ResponseFrame) ([]byte, error) {
	size := RequestIDSize + 1 + BodyLenSize + len(frame.Body)
	if size > MaxFrameSize {
		return nil, errors.ErrFrameTooLarge
	}

	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint64(buf[offset:], frame.RequestID)
	offset += RequestIDSize

	buf[offset] = byte(frame.Status)
	offset += 1

	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(frame.Body)))
	offset += BodyLenSize

	if len(frame.Body) > 0 {
		copy(buf[offset:], frame.Body)
	}

	return buf, nil
}

func DecodeResponse(data []byte) (*ResponseFrame, error) {
	if len(data) < RequestIDSize+1+BodyLenSize {
		return nil, errors.ErrInvalidFrame
	}

	offset := 0
	frame := &ResponseFrame{}

	frame.RequestID = binary.LittleEndian.Uint64(data[offset:])
	offset += RequestIDSize

	frame.Status = types.StatusCode(int8(data[offset]))
	offset += 1

	bodyLen := binary.LittleEndian.Uint32(data[offset:])
	offset += BodyLenSize

	if offset+int(bodyLen) > len(data) {
		return nil, errors.ErrInvalidFrame
	}

	if bodyLen > 0 {
		frame.Body = make([]byte, bodyLen)
		copy(frame.Body, data[offset:])
	}

	return frame, nil
}

// EncodeResponseBody marshals a full response into a frame body.
func EncodeResponseBody(resp *types.Response) ([]byte, error) {
	return json.Marshal(resp)
}

// DecodeResponseBody unmarshals a frame body back into a response.
func DecodeResponseBody(body []byte) (*types.Response, error) {
	resp := &types.Response{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ReadFrame reads one length-prefixed frame.
func ReadFrame(conn io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint32(lenBuf)
	if length > MaxFrameSize {
		return nil, errors.ErrFrameTooLarge
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// WriteFrame writes one length-prefixed frame.
func WriteFrame(conn io.Writer, data []byte) error {
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(data)))

	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}

	if _, err := conn.Write(data); err != nil {
		return err
	}

	return nil
}
