package snapshot

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

var (
	ErrCorrupt = errors.New("snapshot: corrupt blob")
	ErrFormat  = errors.New("snapshot: unrecognized record format")
)

var magic = [4]byte{'T', 'B', 'S', 'N'}

const version uint16 = 1

// Marshal lays the five parts out back to back, each prefixed with its
// uvarint length, in part order. The step index is not included.
func (s *Snapshot) Marshal() []byte {
	n := 0
	for _, p := range s.parts {
		n += binary.MaxVarintLen64 + len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range s.parts {
		out = binary.AppendUvarint(out, uint64(len(p)))
		out = append(out, p...)
	}
	return out
}

// Unmarshal splits a blob produced by Marshal. The parts are not decoded;
// Restore reports any part that does not decode.
func Unmarshal(step uint64, blob []byte) (*Snapshot, error) {
	s := &Snapshot{step: step}
	for i := range s.parts {
		size, n := binary.Uvarint(blob)
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad length for %s", ErrCorrupt, Part(i))
		}
		blob = blob[n:]
		if uint64(len(blob)) < size {
			return nil, fmt.Errorf("%w: %s truncated, want %d bytes, have %d", ErrCorrupt, Part(i), size, len(blob))
		}
		s.parts[i] = append([]byte(nil), blob[:size]...)
		blob = blob[size:]
	}
	if len(blob) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(blob))
	}
	return s, nil
}

// WriteTo writes the persisted record: magic, version, step index and the
// blob.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	blob := s.Marshal()
	header := make([]byte, 0, 4+2+8)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, version)
	header = binary.LittleEndian.AppendUint64(header, s.step)

	n, err := w.Write(header)
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(blob)
	return int64(n + m), err
}

// Read parses a persisted record written by WriteTo.
func Read(r io.Reader) (*Snapshot, error) {
	var header [4 + 2 + 8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if [4]byte(header[:4]) != magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != version {
		return nil, fmt.Errorf("%w: version %d", ErrFormat, v)
	}
	step := binary.LittleEndian.Uint64(header[6:])

	blob, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(step, blob)
}

func WriteFile(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := s.WriteTo(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}
