package grid

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/pierrec/lz4/v4"
)

// ErrInvalidPayload is returned when an encoded grid payload cannot be decoded.
var ErrInvalidPayload = errors.New("invalid grid payload")

// wirePayload is the CBOR layout of an encoded grid.
type wirePayload struct {
	Version uint64     `cbor:"1,keyasint"`
	Wallets []string   `cbor:"2,keyasint"`
	Cells   []wireCell `cbor:"3,keyasint"`
}

// wireCell references its owner by position in wirePayload.Wallets so each
// wallet string is written once.
type wireCell struct {
	_     struct{} `cbor:",toarray"`
	X     uint16
	Y     uint16
	Owner uint32
	Color uint32
}

// EncodeCells serializes the owned cells of a grid at version as lz4-compressed
// CBOR.
func EncodeCells(version uint64, cells []Cell) ([]byte, error) {
	p := wirePayload{Version: version, Cells: make([]wireCell, 0, len(cells))}
	index := make(map[string]uint32)
	for _, c := range cells {
		pos, ok := index[c.Owner]
		if !ok {
			pos = uint32(len(p.Wallets))
			index[c.Owner] = pos
			p.Wallets = append(p.Wallets, c.Owner)
		}
		p.Cells = append(p.Cells, wireCell{X: uint16(c.X), Y: uint16(c.Y), Owner: pos, Color: uint32(c.Color)})
	}

	raw, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode grid: %w", err)
	}

	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress grid: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress grid: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCells reverses EncodeCells.
func DecodeCells(data []byte) (uint64, []Cell, error) {
	raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var p wirePayload
	if err := cbor.Unmarshal(raw, &p); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	cells := make([]Cell, 0, len(p.Cells))
	for _, wc := range p.Cells {
		if int(wc.Owner) >= len(p.Wallets) {
			return 0, nil, fmt.Errorf("%w: owner index %d out of range", ErrInvalidPayload, wc.Owner)
		}
		cells = append(cells, Cell{X: int(wc.X), Y: int(wc.Y), Owner: p.Wallets[wc.Owner], Color: Color(wc.Color)})
	}
	return p.Version, cells, nil
}
