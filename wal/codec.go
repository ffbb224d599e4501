package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/txn"
)

// record framing:
//
//	[recordLen uint32][epoch int64][mutationCount uint16][mutations...][crc32 uint32]
//
// crc32 (IEEE) covers recordLen through the last mutation byte inclusive.
// Compression, when enabled, wraps only the mutation bytes.

const (
	recordLenFieldSize  = 4
	epochFieldSize      = 8
	mutationCountSize   = 2
	crcFieldSize        = 4
	recordFixedOverhead = epochFieldSize + mutationCountSize
)

func encodeMutation(w *bytes.Buffer, m txn.Mutation) error {
	w.WriteByte(byte(m.Kind))
	switch m.Kind {
	case txn.MutPutVertex:
		writeUint64(w, uint64(m.VertexID))
		writeBytes(w, m.Data)
	case txn.MutDelVertex:
		writeUint64(w, uint64(m.VertexID))
		if m.Recycle {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case txn.MutPutEdge:
		writeUint64(w, uint64(m.Src))
		writeUint64(w, uint64(m.Dst))
		writeUint16(w, uint16(m.Label))
		if m.ForceInsert {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		writeBytes(w, m.Data)
	case txn.MutDelEdge:
		writeUint64(w, uint64(m.Src))
		writeUint64(w, uint64(m.Dst))
		writeUint16(w, uint16(m.Label))
	default:
		return fmt.Errorf("wal: unknown mutation kind %d", m.Kind)
	}
	return nil
}

func decodeMutation(r *bytes.Reader) (txn.Mutation, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return txn.Mutation{}, err
	}
	m := txn.Mutation{Kind: txn.MutationKind(kindByte)}

	switch m.Kind {
	case txn.MutPutVertex:
		id, err := readUint64(r)
		if err != nil {
			return m, err
		}
		data, err := readBytes(r)
		if err != nil {
			return m, err
		}
		m.VertexID, m.Data = core.VertexID(id), data
	case txn.MutDelVertex:
		id, err := readUint64(r)
		if err != nil {
			return m, err
		}
		recycle, err := r.ReadByte()
		if err != nil {
			return m, err
		}
		m.VertexID, m.Recycle = core.VertexID(id), recycle != 0
	case txn.MutPutEdge:
		src, err := readUint64(r)
		if err != nil {
			return m, err
		}
		dst, err := readUint64(r)
		if err != nil {
			return m, err
		}
		label, err := readUint16(r)
		if err != nil {
			return m, err
		}
		force, err := r.ReadByte()
		if err != nil {
			return m, err
		}
		data, err := readBytes(r)
		if err != nil {
			return m, err
		}
		m.Src, m.Dst = core.VertexID(src), core.VertexID(dst)
		m.Label = core.Label(label)
		m.ForceInsert = force != 0
		m.Data = data
	case txn.MutDelEdge:
		src, err := readUint64(r)
		if err != nil {
			return m, err
		}
		dst, err := readUint64(r)
		if err != nil {
			return m, err
		}
		label, err := readUint16(r)
		if err != nil {
			return m, err
		}
		m.Src, m.Dst = core.VertexID(src), core.VertexID(dst)
		m.Label = core.Label(label)
	default:
		return m, fmt.Errorf("wal: unknown mutation kind %d", m.Kind)
	}
	return m, nil
}

// encodeRecord serializes one commit epoch's mutations into a complete
// framed record, ready to append to the log.
func encodeRecord(epoch core.Timestamp, mutations []txn.Mutation, compress func([]byte) ([]byte, error)) ([]byte, error) {
	var body bytes.Buffer
	for _, m := range mutations {
		if err := encodeMutation(&body, m); err != nil {
			return nil, err
		}
	}

	mutBytes := body.Bytes()
	if compress != nil {
		compressed, err := compress(mutBytes)
		if err != nil {
			return nil, fmt.Errorf("wal: compress record: %w", err)
		}
		mutBytes = compressed
	}

	recordLen := uint32(recordFixedOverhead + len(mutBytes))

	buf := make([]byte, recordLenFieldSize+int(recordLen)+crcFieldSize)
	binary.LittleEndian.PutUint32(buf[0:4], recordLen)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(epoch))
	binary.LittleEndian.PutUint16(buf[12:14], uint16(len(mutations)))
	copy(buf[14:], mutBytes)

	crc := crc32.ChecksumIEEE(buf[:recordLenFieldSize+int(recordLen)])
	binary.LittleEndian.PutUint32(buf[recordLenFieldSize+int(recordLen):], crc)

	return buf, nil
}

// decodeRecord reads one framed record from r, verifying its crc32 before
// returning the decoded epoch and mutations. io.EOF (clean stream end) and
// errCorruptRecord (crc mismatch or truncated framing, the shape the log's
// tail takes after a crash mid-write) are the two errors callers must
// distinguish.
func decodeRecord(r io.Reader, decompress func([]byte) ([]byte, error)) (core.Timestamp, []txn.Mutation, error) {
	var lenBuf [recordLenFieldSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err // EOF propagates as-is
	}
	recordLen := binary.LittleEndian.Uint32(lenBuf[:])
	if recordLen < recordFixedOverhead {
		return 0, nil, errCorruptRecord
	}

	rest := make([]byte, int(recordLen)+crcFieldSize)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, nil, errCorruptRecord
	}

	full := append(lenBuf[:], rest...)
	body := full[:recordLenFieldSize+int(recordLen)]
	wantCRC := binary.LittleEndian.Uint32(full[recordLenFieldSize+int(recordLen):])
	if crc32.ChecksumIEEE(body) != wantCRC {
		return 0, nil, errCorruptRecord
	}

	epoch := core.Timestamp(binary.LittleEndian.Uint64(body[4:12]))
	count := binary.LittleEndian.Uint16(body[12:14])
	mutBytes := body[14:]

	if decompress != nil {
		decoded, err := decompress(mutBytes)
		if err != nil {
			return 0, nil, errCorruptRecord
		}
		mutBytes = decoded
	}

	mr := bytes.NewReader(mutBytes)
	mutations := make([]txn.Mutation, 0, count)
	for i := uint16(0); i < count; i++ {
		m, err := decodeMutation(mr)
		if err != nil {
			return 0, nil, errCorruptRecord
		}
		mutations = append(mutations, m)
	}

	return epoch, mutations, nil
}

func writeUint64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func writeUint16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func writeBytes(w *bytes.Buffer, data []byte) {
	writeUint32(w, uint32(len(data)))
	w.Write(data)
}

func writeUint32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}
