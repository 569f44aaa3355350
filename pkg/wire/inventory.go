package wire

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	inventoryVersion byte = 1

	// maxFieldLen bounds item ids and names so a corrupt length prefix cannot
	// make the decoder allocate arbitrarily large buffers.
	maxFieldLen = 1 << 12
)

// ErrMalformedBlob is returned when an inventory blob cannot be decoded.
var ErrMalformedBlob = errors.New("malformed inventory blob")

// MarshalInventory writes inv as a length-prefixed big-endian binary record:
//
//	version u8 | capacity u16 | count u16 | { idLen u32 | id | nameLen u32 | name | stack u32 }*
func MarshalInventory(inv Inventory) ([]byte, error) {
	if len(inv.Items) > 0xFFFF {
		return nil, fmt.Errorf("inventory has %d items, max %d", len(inv.Items), 0xFFFF)
	}

	var buf bytes.Buffer
	buf.WriteByte(inventoryVersion)
	_ = binary.Write(&buf, binary.BigEndian, inv.Capacity)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(inv.Items)))

	for i, item := range inv.Items {
		if err := writeField(&buf, item.ID); err != nil {
			return nil, fmt.Errorf("item %d id: %w", i, err)
		}
		if err := writeField(&buf, item.Name); err != nil {
			return nil, fmt.Errorf("item %d name: %w", i, err)
		}
		_ = binary.Write(&buf, binary.BigEndian, item.Stack)
	}
	return buf.Bytes(), nil
}

// UnmarshalInventory parses a record produced by MarshalInventory. Trailing bytes
// are rejected.
func UnmarshalInventory(data []byte) (Inventory, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return Inventory{}, fmt.Errorf("%w: missing version", ErrMalformedBlob)
	}
	if version != inventoryVersion {
		return Inventory{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedBlob, version)
	}

	var inv Inventory
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &inv.Capacity); err != nil {
		return Inventory{}, fmt.Errorf("%w: capacity: %v", ErrMalformedBlob, err)
	}
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Inventory{}, fmt.Errorf("%w: count: %v", ErrMalformedBlob, err)
	}

	inv.Items = make([]Item, 0, count)
	for i := 0; i < int(count); i++ {
		var item Item
		if item.ID, err = readField(r); err != nil {
			return Inventory{}, fmt.Errorf("%w: item %d id: %v", ErrMalformedBlob, i, err)
		}
		if item.Name, err = readField(r); err != nil {
			return Inventory{}, fmt.Errorf("%w: item %d name: %v", ErrMalformedBlob, i, err)
		}
		if err := binary.Read(r, binary.BigEndian, &item.Stack); err != nil {
			return Inventory{}, fmt.Errorf("%w: item %d stack: %v", ErrMalformedBlob, i, err)
		}
		inv.Items = append(inv.Items, item)
	}

	if r.Len() != 0 {
		return Inventory{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedBlob, r.Len())
	}
	return inv, nil
}

// EncodeBlob marshals inv and base64-armours it for a text message field.
func EncodeBlob(inv Inventory) (string, error) {
	raw, err := MarshalInventory(inv)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeBlob reverses EncodeBlob.
func DecodeBlob(blob string) (Inventory, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return Inventory{}, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	return UnmarshalInventory(raw)
}

func writeField(buf *bytes.Buffer, s string) error {
	if len(s) > maxFieldLen {
		return fmt.Errorf("field is %d bytes, max %d", len(s), maxFieldLen)
	}
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
	return nil
}

func readField(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if n > maxFieldLen || int(n) > r.Len() {
		return "", fmt.Errorf("field length %d out of range", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
