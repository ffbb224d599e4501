package wal

import (
	"fmt"
	"io"
	"os"
)

// walMagic and walHeaderFixedLen fix the on-disk framing: a 16-byte file
// header followed by a stream of
// [recordLen][epoch][mutationCount][mutations...][crc32] records.
var (
	walMagic          = [4]byte{'L', 'V', 'G', '0'}
	walHeaderVersion  = uint8(1)
	walHeaderFixedLen = 16
)

type walHeaderInfo struct {
	Compressed       bool
	CompressionLevel int
	HeaderLen        int64
}

func writeWALHeader(w io.Writer, info walHeaderInfo) (int64, error) {
	var flags uint8
	if info.Compressed {
		flags |= 1
	}
	level := uint8(0)
	if info.Compressed {
		level = uint8(info.CompressionLevel)
	}

	buf := make([]byte, walHeaderFixedLen)
	copy(buf[0:4], walMagic[:])
	buf[4] = walHeaderVersion
	buf[5] = flags
	buf[6] = level
	// buf[7:16] reserved

	if _, err := w.Write(buf); err != nil {
		return 0, fmt.Errorf("failed to write WAL header: %w", err)
	}
	return int64(len(buf)), nil
}

func readWALHeader(f *os.File) (walHeaderInfo, bool, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return walHeaderInfo{}, false, fmt.Errorf("failed to seek WAL: %w", err)
	}

	buf := make([]byte, walHeaderFixedLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		if err == io.EOF {
			return walHeaderInfo{}, false, nil
		}
		return walHeaderInfo{}, false, fmt.Errorf("failed to read WAL header: %w", err)
	}

	var magic [4]byte
	copy(magic[:], buf[0:4])
	if magic != walMagic {
		return walHeaderInfo{}, false, fmt.Errorf("unsupported WAL format: invalid header magic")
	}
	version := buf[4]
	if version != walHeaderVersion {
		return walHeaderInfo{}, false, fmt.Errorf("unsupported WAL header version: %d", version)
	}
	flags := buf[5]
	compressed := flags&1 != 0
	level := int(buf[6])

	return walHeaderInfo{
		Compressed:       compressed,
		CompressionLevel: level,
		HeaderLen:        int64(walHeaderFixedLen),
	}, true, nil
}
