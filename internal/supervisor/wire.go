package supervisor

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// Frames on all three queues (command, result, log) share one
// length-prefixed gob envelope. Command and Result are interface
// types, so each travels wrapped in a small concrete struct whose
// field is declared with that interface type — the shape gob actually
// requires to carry a registered concrete value across an interface
// boundary (encoding the interface value directly at the top level
// loses the static type information gob needs on decode).

type commandEnvelope struct{ Cmd Command }
type resultEnvelope struct{ Res Result }
type logEnvelope struct{ Message string }

func writeFrame(w io.Writer, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return fmt.Errorf("supervisor: gob encode: %w", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(buf.Len()))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func readFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func WriteCommand(w io.Writer, cmd Command) error {
	return writeFrame(w, commandEnvelope{Cmd: cmd})
}

func ReadCommand(r io.Reader) (Command, error) {
	var env commandEnvelope
	if err := readFrame(r, &env); err != nil {
		return nil, err
	}
	return env.Cmd, nil
}

func WriteResult(w io.Writer, res Result) error {
	return writeFrame(w, resultEnvelope{Res: res})
}

func ReadResult(r io.Reader) (Result, error) {
	var env resultEnvelope
	if err := readFrame(r, &env); err != nil {
		return nil, err
	}
	return env.Res, nil
}

func WriteLogRecord(w io.Writer, message string) error {
	return writeFrame(w, logEnvelope{Message: message})
}

func ReadLogRecord(r io.Reader) (string, error) {
	var env logEnvelope
	if err := readFrame(r, &env); err != nil {
		return "", err
	}
	return env.Message, nil
}
