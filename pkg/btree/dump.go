package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"sync"

	treeerrors "github.com/bobboyms/bptreeindex/pkg/errors"
)

// Dump/Load define the tree's on-disk format, and a loader ships
// alongside the writer. The field widths and the node-header field
// order below are this package's own (16-bit version, 64-bit record
// count and node ids, an explicit body length, no padding after the
// leaf flag), so the file is not byte-compatible with original_source's
// 32-bit header layout.
// The layout is grounded in the teacher's pkg/wal header encoding
// (fixed-width binary.LittleEndian fields, a leading magic/version
// pair) and pkg/heap's segment-header validation idiom (reject on
// magic or version mismatch before trusting anything else in the
// file). The checksum follows pkg/wal's CRC32 Castagnoli table,
// widened to two 32-bit halves — one over the fixed header, one over
// the node section — since no single CRC32 call covers a stream whose
// length isn't known until the header is written.
const (
	dumpMagic   uint32 = 0x42545245 // "BTRE"
	dumpVersion uint16 = 1

	fileHeaderSize = 4 + 2 + 4 + 4 + 8 + 4 + 8 // magic,version,order,nodeCount,recordCount,bodyLen,checksum
	nodeHeaderSize = 8 + 8 + 1 + 4 + 8 + 4      // id,parentID,isLeaf,keyCount,nextLeafID,payloadLen
)

var dumpCRCTable = crc32.MakeTable(crc32.Castagnoli)

// scratchPool hands out growable byte buffers for node serialization,
// mirroring the teacher's wal.AcquireBuffer/ReleaseBuffer pool so Dump
// doesn't allocate per node on a large tree.
var scratchPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 0, 4096)
		return &buf
	},
}

func acquireScratch() *[]byte {
	return scratchPool.Get().(*[]byte)
}

func releaseScratch(buf *[]byte) {
	*buf = (*buf)[:0]
	scratchPool.Put(buf)
}

type fileHeader struct {
	order       uint32
	nodeCount   uint32
	recordCount uint64
	bodyLen     uint32
	checksum    uint64
}

func (h *fileHeader) encode(buf []byte, headerCRC uint32) {
	binary.LittleEndian.PutUint32(buf[0:4], dumpMagic)
	binary.LittleEndian.PutUint16(buf[4:6], dumpVersion)
	binary.LittleEndian.PutUint32(buf[6:10], h.order)
	binary.LittleEndian.PutUint32(buf[10:14], h.nodeCount)
	binary.LittleEndian.PutUint64(buf[14:22], h.recordCount)
	binary.LittleEndian.PutUint32(buf[22:26], h.bodyLen)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(headerCRC)<<32|uint64(h.checksum))
}

func decodeFileHeader(buf []byte) (h fileHeader, headerCRC uint32, bodyCRC uint32, err error) {
	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != dumpMagic {
		return h, 0, 0, &treeerrors.CorruptInputError{Reason: "bad magic number"}
	}
	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != dumpVersion {
		return h, 0, 0, &treeerrors.CorruptInputError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	h.order = binary.LittleEndian.Uint32(buf[6:10])
	h.nodeCount = binary.LittleEndian.Uint32(buf[10:14])
	h.recordCount = binary.LittleEndian.Uint64(buf[14:22])
	h.bodyLen = binary.LittleEndian.Uint32(buf[22:26])
	combined := binary.LittleEndian.Uint64(buf[26:34])
	headerCRC = uint32(combined >> 32)
	bodyCRC = uint32(combined)
	return h, headerCRC, bodyCRC, nil
}

// Dump serializes the tree to w in the format above. The tree must
// have been built with non-nil KeyCodec and ValueCodec. Dump holds
// t.mu for its duration, which blocks a new Insert/Delete from
// starting, and read-locks each node individually as it visits it, so
// no single node's content is ever torn. It is not, however, a
// point-in-time snapshot of the whole tree: an Insert/Delete that was
// already past t.mu and restructuring nodes when Dump began can still
// split or merge nodes Dump hasn't reached yet, which the resulting
// dump would then miss or only partially reflect. Call Dump only when
// no other goroutine is concurrently mutating the tree.
func (t *Tree[K, V]) Dump(w io.Writer) error {
	if t.keyCodec == nil || t.valueCodec == nil {
		return &treeerrors.InvalidArgumentError{Reason: "dump requires KeyCodec and ValueCodec"}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make(map[*Node[K, V]]uint64)
	order := make([]*Node[K, V], 0)
	assignIDs(t.root, ids, &order)

	body := acquireScratch()
	defer releaseScratch(body)

	var recordCount uint64
	kbuf := make([]byte, 4096)
	vbuf := make([]byte, 4096)
	nhbuf := make([]byte, nodeHeaderSize)

	for _, n := range order {
		n.RLock()
		var parentID, nextLeafID uint64
		if n.parent != nil {
			parentID = ids[n.parent]
		}
		if n.leaf && n.next != nil {
			nextLeafID = ids[n.next]
		}

		payload := acquireScratch()
		if n.leaf {
			for i := 0; i < n.n; i++ {
				kn := growToFit(&kbuf, t.keyCodec.Encode, n.keys[i])
				*payload = appendLenPrefixed(*payload, kbuf[:kn])
				vn := growToFit(&vbuf, t.valueCodec.Encode, n.recs[i].value)
				*payload = appendLenPrefixed(*payload, vbuf[:vn])
			}
			recordCount += uint64(n.n)
		} else {
			for i := 0; i < n.n; i++ {
				kn := growToFit(&kbuf, t.keyCodec.Encode, n.keys[i])
				*payload = appendLenPrefixed(*payload, kbuf[:kn])
			}
			for _, c := range n.children {
				*payload = binary.LittleEndian.AppendUint64(*payload, ids[c])
			}
		}

		binary.LittleEndian.PutUint64(nhbuf[0:8], ids[n])
		binary.LittleEndian.PutUint64(nhbuf[8:16], parentID)
		if n.leaf {
			nhbuf[16] = 1
		} else {
			nhbuf[16] = 0
		}
		binary.LittleEndian.PutUint32(nhbuf[17:21], uint32(n.n))
		binary.LittleEndian.PutUint64(nhbuf[21:29], nextLeafID)
		binary.LittleEndian.PutUint32(nhbuf[29:33], uint32(len(*payload)))

		*body = append(*body, nhbuf...)
		*body = append(*body, *payload...)
		releaseScratch(payload)
		n.RUnlock()
	}

	bodyCRC := crc32.Checksum(*body, dumpCRCTable)

	h := fileHeader{
		order:       uint32(t.order),
		nodeCount:   uint32(len(order)),
		recordCount: recordCount,
		bodyLen:     uint32(len(*body)),
		checksum:    uint64(bodyCRC),
	}

	hdrWithoutCRC := make([]byte, fileHeaderSize-8)
	binary.LittleEndian.PutUint32(hdrWithoutCRC[0:4], dumpMagic)
	binary.LittleEndian.PutUint16(hdrWithoutCRC[4:6], dumpVersion)
	binary.LittleEndian.PutUint32(hdrWithoutCRC[6:10], h.order)
	binary.LittleEndian.PutUint32(hdrWithoutCRC[10:14], h.nodeCount)
	binary.LittleEndian.PutUint64(hdrWithoutCRC[14:22], h.recordCount)
	binary.LittleEndian.PutUint32(hdrWithoutCRC[22:26], h.bodyLen)
	headerCRC := crc32.Checksum(hdrWithoutCRC, dumpCRCTable)

	fullHeader := make([]byte, fileHeaderSize)
	h.encode(fullHeader, headerCRC)

	if _, err := w.Write(fullHeader); err != nil {
		return err
	}
	_, err := w.Write(*body)
	return err
}

// Load reconstructs a tree previously written by Dump. opts supplies
// the comparator, destructor, and codecs; its Order is ignored in
// favor of the order recorded in the file.
func Load[K any, V any](r io.Reader, opts Options[K, V]) (*Tree[K, V], error) {
	if opts.Comparator == nil {
		return nil, &treeerrors.InvalidArgumentError{Reason: "nil comparator"}
	}
	if opts.KeyCodec == nil || opts.ValueCodec == nil {
		return nil, &treeerrors.InvalidArgumentError{Reason: "load requires KeyCodec and ValueCodec"}
	}

	hdrBuf := make([]byte, fileHeaderSize)
	if _, err := io.ReadFull(r, hdrBuf); err != nil {
		return nil, &treeerrors.CorruptInputError{Reason: "short header: " + err.Error()}
	}

	h, headerCRC, bodyCRC, err := decodeFileHeader(hdrBuf)
	if err != nil {
		return nil, err
	}

	hdrWithoutCRC := hdrBuf[:fileHeaderSize-8]
	if crc32.Checksum(hdrWithoutCRC, dumpCRCTable) != headerCRC {
		return nil, &treeerrors.CorruptInputError{Reason: "header checksum mismatch"}
	}

	body := make([]byte, h.bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, &treeerrors.CorruptInputError{Reason: "short body: " + err.Error()}
	}
	if crc32.Checksum(body, dumpCRCTable) != bodyCRC {
		return nil, &treeerrors.CorruptInputError{Reason: "body checksum mismatch"}
	}

	if int(opts.Order) != int(h.order) {
		opts.Order = int(h.order)
	}
	if opts.Order < MinOrder {
		return nil, &treeerrors.CorruptInputError{Reason: "stored order below minimum legal branching factor"}
	}

	type rawNode struct {
		id, parentID, nextLeafID uint64
		leaf                     bool
		keyCount                 uint32
		node                     *Node[K, V]
		childIDs                 []uint64
	}

	raw := make(map[uint64]*rawNode, h.nodeCount)
	order := make([]*rawNode, 0, h.nodeCount)

	pos := 0
	for i := uint32(0); i < h.nodeCount; i++ {
		if pos+nodeHeaderSize > len(body) {
			return nil, &treeerrors.CorruptInputError{Reason: "truncated node header"}
		}
		nh := body[pos : pos+nodeHeaderSize]
		pos += nodeHeaderSize

		rn := &rawNode{
			id:         binary.LittleEndian.Uint64(nh[0:8]),
			parentID:   binary.LittleEndian.Uint64(nh[8:16]),
			leaf:       nh[16] == 1,
			keyCount:   binary.LittleEndian.Uint32(nh[17:21]),
			nextLeafID: binary.LittleEndian.Uint64(nh[21:29]),
		}
		payloadLen := int(binary.LittleEndian.Uint32(nh[29:33]))
		if pos+payloadLen > len(body) {
			return nil, &treeerrors.CorruptInputError{Reason: "truncated node payload"}
		}
		payload := body[pos : pos+payloadLen]
		pos += payloadLen

		n := newNode[K, V](opts.Order, rn.leaf)
		n.n = int(rn.keyCount)

		r := bytes.NewReader(payload)
		for k := uint32(0); k < rn.keyCount; k++ {
			kb, err := readLenPrefixed(r)
			if err != nil {
				return nil, &treeerrors.CorruptInputError{Reason: "truncated key: " + err.Error()}
			}
			key, err := opts.KeyCodec.Decode(kb)
			if err != nil {
				return nil, &treeerrors.CorruptInputError{Reason: "key decode: " + err.Error()}
			}
			n.keys = append(n.keys, key)

			if rn.leaf {
				vb, err := readLenPrefixed(r)
				if err != nil {
					return nil, &treeerrors.CorruptInputError{Reason: "truncated value: " + err.Error()}
				}
				val, err := opts.ValueCodec.Decode(vb)
				if err != nil {
					return nil, &treeerrors.CorruptInputError{Reason: "value decode: " + err.Error()}
				}
				n.recs = append(n.recs, &record[V]{value: val})
			}
		}

		if !rn.leaf {
			remaining := payload[len(payload)-r.Len():]
			childCount := rn.keyCount + 1
			if uint32(len(remaining)) != childCount*8 {
				return nil, &treeerrors.CorruptInputError{Reason: "child id table size mismatch"}
			}
			rn.childIDs = make([]uint64, childCount)
			for i := range rn.childIDs {
				rn.childIDs[i] = binary.LittleEndian.Uint64(remaining[i*8 : i*8+8])
			}
		}

		rn.node = n
		raw[rn.id] = rn
		order = append(order, rn)
	}

	var root *Node[K, V]
	for _, rn := range order {
		if !rn.leaf {
			rn.node.children = make([]*Node[K, V], len(rn.childIDs))
			for i, cid := range rn.childIDs {
				child, ok := raw[cid]
				if !ok {
					return nil, &treeerrors.CorruptInputError{Reason: "dangling child id"}
				}
				rn.node.children[i] = child.node
				child.node.parent = rn.node
			}
		}
		if rn.leaf && rn.nextLeafID != 0 {
			next, ok := raw[rn.nextLeafID]
			if !ok {
				return nil, &treeerrors.CorruptInputError{Reason: "dangling next-leaf id"}
			}
			rn.node.next = next.node
		}
		if rn.parentID == 0 {
			root = rn.node
		}
	}
	if root == nil {
		return nil, &treeerrors.CorruptInputError{Reason: "no root node in dump"}
	}

	return &Tree[K, V]{
		order:      opts.Order,
		cmp:        opts.Comparator,
		ar:         newArena[K, V](opts.Order, opts.Destroy),
		keyCodec:   opts.KeyCodec,
		valueCodec: opts.ValueCodec,
		root:       root,
	}, nil
}

// assignIDs walks the tree breadth-first, assigning ids starting at 1
// (0 is the "no parent"/"no next leaf" sentinel) so parent and sibling
// references can be serialized as plain integers. Each node is briefly
// read-locked to snapshot its leaf flag and children slice: a
// concurrent split or merge always locks a node before rewriting its
// children, so a snapshot taken under that same lock can't observe a
// half-built children array — the caller's surrounding t.mu.RLock only
// rules out root replacement, not per-node structural work in flight.
func assignIDs[K any, V any](root *Node[K, V], ids map[*Node[K, V]]uint64, order *[]*Node[K, V]) {
	queue := []*Node[K, V]{root}
	next := uint64(1)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		ids[n] = next
		next++
		*order = append(*order, n)

		n.RLock()
		leaf := n.leaf
		var children []*Node[K, V]
		if !leaf {
			children = append(children, n.children...)
		}
		n.RUnlock()

		queue = append(queue, children...)
	}
}

// growToFit calls encode once, and again with a larger buffer if the
// first attempt signaled the buffer was too small (Encoder returns 0),
// matching the Encoder contract in pkg/key/codec.go.
func growToFit[T any](buf *[]byte, encode func(T, []byte) int, v T) int {
	n := encode(v, *buf)
	for n == 0 && len(*buf) > 0 {
		grown := make([]byte, len(*buf)*2)
		*buf = grown
		n = encode(v, *buf)
	}
	return n
}

func appendLenPrefixed(dst []byte, data []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(data)))
	dst = append(dst, data...)
	return dst
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
