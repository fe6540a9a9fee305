package list

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	treeerrors "github.com/bobboyms/bptreeindex/pkg/errors"
	"github.com/bobboyms/bptreeindex/pkg/key"
)

// Dump/Load implements the design's linked-container wire format
// (design §6): magic 0x4C4C4953 ("LLIS"), version 1, a node count, and
// a 64-bit checksum, followed by one id/next-id/payload-length header
// per node — directly mirroring original_source/llist.h's
// LListHeader/LListNodeHeader layout and using the same CRC32
// Castagnoli checksum the tree's dump uses, widened across the whole
// node section rather than split header/body since the list header
// carries no separately-validated length field.
const (
	listMagic   uint32 = 0x4C4C4953
	listVersion uint32 = 1

	listHeaderSize     = 4 + 4 + 4 + 8 // magic, version, nodeCount, checksum
	listNodeHeaderSize = 4 + 4 + 4     // id, nextID, payloadLen
)

var listCRCTable = crc32.MakeTable(crc32.Castagnoli)

// Dump serializes the list to w using codec to encode each element.
func (l *List[T]) Dump(w io.Writer, codec key.Codec[T]) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	body := make([]byte, 0, l.size*32)
	buf := make([]byte, 4096)

	id := uint32(1)
	nodeHeader := make([]byte, listNodeHeaderSize)
	for n := l.head; n != nil; n = n.next {
		nextID := uint32(0)
		if n.next != nil {
			nextID = id + 1
		}

		payloadLen := encodeWithGrowth(codec, &buf, n.data)
		binary.LittleEndian.PutUint32(nodeHeader[0:4], id)
		binary.LittleEndian.PutUint32(nodeHeader[4:8], nextID)
		binary.LittleEndian.PutUint32(nodeHeader[8:12], uint32(payloadLen))

		body = append(body, nodeHeader...)
		body = append(body, buf[:payloadLen]...)
		id++
	}

	checksum := crc32.Checksum(body, listCRCTable)

	header := make([]byte, listHeaderSize)
	binary.LittleEndian.PutUint32(header[0:4], listMagic)
	binary.LittleEndian.PutUint32(header[4:8], listVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(l.size))
	binary.LittleEndian.PutUint64(header[12:20], uint64(checksum))

	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// encodeWithGrowth is a small adapter so Dump can call the Encoder hook without
// repeatedly growing buf inline.
func encodeWithGrowth[T any](codec key.Codec[T], buf *[]byte, v T) int {
	n := codec.Encode(v, *buf)
	for n == 0 && len(*buf) > 0 {
		*buf = make([]byte, len(*buf)*2)
		n = codec.Encode(v, *buf)
	}
	return n
}

// Load reconstructs a list previously written by Dump.
func Load[T any](r io.Reader, codec key.Codec[T], destroy func(T)) (*List[T], error) {
	header := make([]byte, listHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, &treeerrors.CorruptInputError{Reason: "short header: " + err.Error()}
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != listMagic {
		return nil, &treeerrors.CorruptInputError{Reason: "bad magic number"}
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != listVersion {
		return nil, &treeerrors.CorruptInputError{Reason: "unsupported version"}
	}
	nodeCount := binary.LittleEndian.Uint32(header[8:12])
	wantChecksum := binary.LittleEndian.Uint64(header[12:20])

	rest, err := io.ReadAll(r)
	if err != nil {
		return nil, &treeerrors.CorruptInputError{Reason: "short body: " + err.Error()}
	}
	if uint64(crc32.Checksum(rest, listCRCTable)) != wantChecksum {
		return nil, &treeerrors.CorruptInputError{Reason: "checksum mismatch"}
	}

	l := New[T](destroy)
	pos := 0
	for i := uint32(0); i < nodeCount; i++ {
		if pos+listNodeHeaderSize > len(rest) {
			return nil, &treeerrors.CorruptInputError{Reason: "truncated node header"}
		}
		nh := rest[pos : pos+listNodeHeaderSize]
		pos += listNodeHeaderSize
		payloadLen := int(binary.LittleEndian.Uint32(nh[8:12]))

		if pos+payloadLen > len(rest) {
			return nil, &treeerrors.CorruptInputError{Reason: "truncated node payload"}
		}
		payload := rest[pos : pos+payloadLen]
		pos += payloadLen

		v, err := codec.Decode(payload)
		if err != nil {
			return nil, &treeerrors.CorruptInputError{Reason: "element decode: " + err.Error()}
		}
		l.PushBack(v)
	}

	return l, nil
}
