package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/txn"
)

// Replay calls callback once per record, in log order, reconstructing the
// commit epoch and mutation set the record was written with. It stops
// gracefully — without error — at the first record that fails its crc32
// check, since that is exactly the shape a crash mid-append leaves behind
// rather than a genuine corruption of earlier, already-fsynced data.
func (w *WAL) Replay(callback func(epoch core.Timestamp, mutations []txn.Mutation) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(w.dataOffset, 0); err != nil {
		return err
	}
	r := bufio.NewReader(w.file)

	for {
		epoch, mutations, err := decodeRecord(r, w.decompressFn())
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, errCorruptRecord) {
				break
			}
			return fmt.Errorf("wal: replay failed: %w", err)
		}
		if err := callback(epoch, mutations); err != nil {
			return fmt.Errorf("wal: replay callback for epoch %d: %w", epoch, err)
		}
	}

	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	return nil
}
