package usb2snes

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrProtocol = errors.New("usb2snes: protocol error")
	// ErrOverread is returned when a binary transfer delivers more bytes than were requested.
	ErrOverread = fmt.Errorf("%w: binary reply exceeded expected size", ErrProtocol)
)

type request struct {
	Opcode   string   `json:"Opcode"`
	Space    string   `json:"Space,omitempty"`
	Flags    []string `json:"Flags"`
	Operands []string `json:"Operands"`
}

type result struct {
	Results *[]string `json:"Results"`
}

// EncodeCommand serializes cmd into the JSON request envelope.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Opcode == "" {
		return nil, fmt.Errorf("%w: empty opcode", ErrProtocol)
	}

	operands := cmd.Operands
	if operands == nil {
		operands = []string{}
	}

	return json.Marshal(&request{
		Opcode:   string(cmd.Opcode),
		Space:    string(cmd.Space),
		Flags:    []string{},
		Operands: operands,
	})
}

// DecodeReply parses a text reply frame.
func DecodeReply(p []byte) (rsp Reply, err error) {
	var r result
	if err = json.Unmarshal(p, &r); err != nil {
		err = fmt.Errorf("%w: decode reply: %v", ErrProtocol, err)
		return
	}
	if r.Results == nil {
		err = fmt.Errorf("%w: reply has no Results field", ErrProtocol)
		return
	}

	rsp.Results = *r.Results
	return
}
