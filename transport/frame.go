package transport

import "bytes"

// DefaultSeparator joins command and data when the caller does not choose one.
const DefaultSeparator byte = ' '

var textMarker = []byte{0xff, 0xff, 0xff, 0xff}

// EncodeText builds a text frame.
func EncodeText(command, data string, sep byte) []byte {
	frame := make([]byte, 0, len(textMarker)+len(command)+1+len(data))
	frame = append(frame, textMarker...)
	frame = append(frame, command...)
	frame = append(frame, sep)
	frame = append(frame, data...)
	return frame
}

// DecodeText splits a text frame into command and data.
// ok is false for raw frames and frames with an empty command.
func DecodeText(frame []byte) (command, data string, ok bool) {
	if !bytes.HasPrefix(frame, textMarker) {
		return "", "", false
	}
	body := frame[len(textMarker):]

	idx := bytes.IndexAny(body, " \n")
	if idx < 0 {
		command = string(body)
	} else {
		command = string(body[:idx])
		data = string(body[idx+1:])
	}
	if command == "" {
		return "", "", false
	}
	return command, data, true
}
