// Package wal provides write-ahead logging for the storage engine's commit
// path.
//
// Every committing transaction appends one record per commit epoch holding
// the transaction's mutations; a crash recovery
// pass replays the log from the last checkpoint forward. Records compress
// their mutation bytes independently with zstd, so a truncated tail from a
// crash mid-write never corrupts an earlier record.
//
// Features:
//   - Append(epoch, mutations) as the sole write entry point
//   - Configurable fsync behavior for performance vs durability tradeoff
//   - Checkpoint support for log truncation once the block store is durable
//   - Tail recovery: a torn trailing record from a crash is truncated away
package wal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/livegraph/livegraph/core"
	"github.com/livegraph/livegraph/resource"
	"github.com/livegraph/livegraph/txn"
)

// errCorruptRecord marks a record that failed its crc32 check or was cut
// short by a crash mid-write — the log's tail, never its middle.
var errCorruptRecord = errors.New("wal: corrupt record")

// WAL provides write-ahead logging for durability.
type WAL struct {
	mu               sync.Mutex
	file             *os.File
	bufWriter        *bufio.Writer
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder
	filePath         string
	compressed       bool
	compressionLevel int
	dataOffset       int64 // start of the record stream, after the file header

	// Auto-checkpoint tracking
	autoCheckpointRecords int
	autoCheckpointMB      int
	committedRecords      int
	checkpointFunc        func() error

	// Group commit support (background goroutine lifecycle)
	durabilityMode      DurabilityMode
	groupCommitInterval time.Duration
	groupCommitMaxOps   int
	groupCommitTicker   *time.Ticker
	groupCommitStopCh   chan struct{}
	groupCommitPending  int
	groupCommitWg       sync.WaitGroup

	// Blocking group commit
	syncCond         *sync.Cond
	recordsWritten   uint64
	persistedRecords uint64

	ioController *resource.Controller
}

// writerFor wraps f in a rate-limited writer when an IOController is
// configured, so buffered-writer flushes and fsyncs draw from the same IO
// budget as background compaction and block-file growth.
func (w *WAL) writerFor(f *os.File) io.Writer {
	if w.ioController == nil {
		return f
	}
	return resource.NewRateLimitedWriter(f, w.ioController, context.Background())
}

// FilePath returns the path to the WAL file.
func (w *WAL) FilePath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filePath
}

// New creates a new WAL instance, recovering any existing file at opts.Path.
func New(optFns ...func(o *Options)) (*WAL, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(opts.Path, 0750); err != nil {
		return nil, fmt.Errorf("failed to create WAL directory: %w", err)
	}

	filePath := filepath.Join(opts.Path, "livegraph.wal")

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_RDWR, 0600) //nolint:gosec // G304: Path is configurable
	if err != nil {
		return nil, fmt.Errorf("failed to open WAL file: %w", err)
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat WAL file: %w", err)
	}

	w := &WAL{
		file:                  file,
		filePath:              filePath,
		compressionLevel:      opts.CompressionLevel,
		autoCheckpointRecords: opts.AutoCheckpointRecords,
		autoCheckpointMB:      opts.AutoCheckpointMB,
		durabilityMode:        opts.DurabilityMode,
		groupCommitInterval:   opts.GroupCommitInterval,
		groupCommitMaxOps:     opts.GroupCommitMaxOps,
		ioController:          opts.IOController,
	}
	w.syncCond = sync.NewCond(&w.mu)

	if err := w.initializeFile(st, opts); err != nil {
		_ = file.Close()
		return nil, err
	}

	if w.compressed {
		level := zstd.EncoderLevelFromZstd(w.compressionLevel)
		encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to create compressor: %w", err)
		}
		w.encoder = encoder

		decoder, err := zstd.NewReader(nil)
		if err != nil {
			_ = encoder.Close()
			_ = file.Close()
			return nil, fmt.Errorf("failed to create decompressor: %w", err)
		}
		w.decoder = decoder
	}

	if err := w.recoverTail(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to recover WAL tail: %w", err)
	}

	w.bufWriter = bufio.NewWriter(w.writerFor(w.file))

	if w.durabilityMode == DurabilityGroupCommit && w.groupCommitInterval > 0 {
		w.groupCommitStopCh = make(chan struct{})
		w.groupCommitTicker = time.NewTicker(w.groupCommitInterval)
		w.groupCommitWg.Add(1)
		go w.groupCommitWorker()
	}

	return w, nil
}

func (w *WAL) initializeFile(info os.FileInfo, opts Options) error {
	if info.Size() == 0 {
		return w.writeNewHeader(opts)
	}
	return w.readExistingHeader()
}

func (w *WAL) writeNewHeader(opts Options) error {
	hdrLen, err := writeWALHeader(w.file, walHeaderInfo{
		Compressed:       opts.Compress,
		CompressionLevel: opts.CompressionLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to write WAL header: %w", err)
	}
	w.dataOffset = hdrLen
	w.compressed = opts.Compress
	return nil
}

func (w *WAL) readExistingHeader() error {
	hdrInfo, valid, err := readWALHeader(w.file)
	if err != nil {
		return fmt.Errorf("failed to read WAL header: %w", err)
	}
	if !valid {
		return fmt.Errorf("invalid WAL header")
	}
	w.dataOffset = hdrInfo.HeaderLen
	w.compressed = hdrInfo.Compressed
	w.compressionLevel = hdrInfo.CompressionLevel
	return nil
}

// recoverTail replays every record after the header, stopping at the first
// one that fails its crc32 check — the shape a crash mid-append leaves
// behind — and truncates the file there so the next Append overwrites it.
func (w *WAL) recoverTail() error {
	if _, err := w.file.Seek(w.dataOffset, 0); err != nil {
		return err
	}
	data, err := io.ReadAll(w.file)
	if err != nil {
		return err
	}

	br := bytes.NewReader(data)
	var validLen int64
	for {
		before := br.Len()
		if _, _, err := decodeRecord(br, w.decompressFn()); err != nil {
			break
		}
		validLen += int64(before - br.Len())
	}

	validEnd := w.dataOffset + validLen
	if err := w.file.Truncate(validEnd); err != nil {
		return err
	}
	_, err = w.file.Seek(validEnd, 0)
	return err
}

func (w *WAL) compressFn() func([]byte) ([]byte, error) {
	if !w.compressed {
		return nil
	}
	return func(b []byte) ([]byte, error) {
		return w.encoder.EncodeAll(b, nil), nil
	}
}

func (w *WAL) decompressFn() func([]byte) ([]byte, error) {
	if !w.compressed {
		return nil
	}
	return func(b []byte) ([]byte, error) {
		return w.decoder.DecodeAll(b, nil)
	}
}

// Append persists one commit epoch's mutations as a single framed record
// and applies the configured durability policy before returning.
func (w *WAL) Append(epoch core.Timestamp, mutations []txn.Mutation) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, err := encodeRecord(epoch, mutations, w.compressFn())
	if err != nil {
		return fmt.Errorf("failed to encode WAL record: %w", err)
	}
	if _, err := w.bufWriter.Write(rec); err != nil {
		return fmt.Errorf("failed to write WAL record: %w", err)
	}
	if err := w.flushLocked(); err != nil {
		return err
	}

	w.recordsWritten++
	w.committedRecords++
	if err := w.syncCommitLocked(); err != nil {
		return err
	}
	return w.maybeCheckpointLocked()
}

func (w *WAL) flushLocked() error {
	if err := w.bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

func (w *WAL) syncCommitLocked() error {
	return w.syncIfNeeded()
}

// syncIfNeeded performs fsync based on the configured durability mode.
func (w *WAL) syncIfNeeded() error {
	switch w.durabilityMode {
	case DurabilityAsync:
		return nil

	case DurabilitySync:
		return w.file.Sync()

	case DurabilityGroupCommit:
		w.groupCommitPending++
		target := w.recordsWritten

		if w.groupCommitPending >= w.groupCommitMaxOps {
			if err := w.doGroupCommit(); err != nil {
				return err
			}
		} else {
			for w.persistedRecords < target {
				w.syncCond.Wait()
			}
		}
		return nil

	default:
		return nil
	}
}

// doGroupCommit performs the actual fsync and resets the pending counter.
// Caller must hold w.mu.
func (w *WAL) doGroupCommit() error {
	if w.groupCommitPending == 0 {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	w.groupCommitPending = 0
	w.persistedRecords = w.recordsWritten
	w.syncCond.Broadcast()
	return nil
}

func (w *WAL) groupCommitWorker() {
	defer w.groupCommitWg.Done()

	if w.groupCommitTicker == nil {
		return
	}

	for {
		select {
		case <-w.groupCommitStopCh:
			w.mu.Lock()
			_ = w.doGroupCommit()
			w.mu.Unlock()
			return

		case <-w.groupCommitTicker.C:
			w.mu.Lock()
			_ = w.doGroupCommit()
			w.mu.Unlock()
		}
	}
}

// Checkpoint truncates the WAL. Call this once the block store itself has
// been durably synced to disk — everything the log would replay is already
// reflected there, so the log can start over empty.
func (w *WAL) Checkpoint() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.flushLocked(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	return w.truncate()
}

func (w *WAL) truncate() error {
	if w.bufWriter != nil {
		if err := w.bufWriter.Flush(); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}
	if err := w.file.Close(); err != nil {
		return err
	}

	file, err := os.OpenFile(w.filePath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to truncate WAL file: %w", err)
	}
	w.file = file

	hdrLen, err := writeWALHeader(w.file, walHeaderInfo{
		Compressed:       w.compressed,
		CompressionLevel: w.compressionLevel,
	})
	if err != nil {
		_ = w.file.Close()
		return err
	}
	w.dataOffset = hdrLen
	if _, err := w.file.Seek(w.dataOffset, 0); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to seek WAL data offset: %w", err)
	}

	w.bufWriter = bufio.NewWriter(w.writerFor(file))
	w.recordsWritten = 0
	w.persistedRecords = 0

	return nil
}

// Close closes the WAL file gracefully.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}

	if w.groupCommitTicker != nil {
		close(w.groupCommitStopCh)
		w.mu.Unlock()
		w.groupCommitWg.Wait()
		w.mu.Lock()
		w.groupCommitTicker.Stop()
		w.groupCommitTicker = nil
	}

	if w.bufWriter != nil {
		if err := w.bufWriter.Flush(); err != nil {
			return fmt.Errorf("failed to flush buffer: %w", err)
		}
	}
	if w.encoder != nil {
		w.encoder.Close()
	}
	if w.decoder != nil {
		w.decoder.Close()
	}

	err := w.file.Close()
	w.file = nil
	return err
}

// Len returns the number of records currently in the WAL (for testing).
func (w *WAL) Len() (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	currentPos, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := w.file.Seek(w.dataOffset, 0); err != nil {
		return 0, err
	}

	r := bufio.NewReader(w.file)
	count := 0
	for {
		if _, _, err := decodeRecord(r, w.decompressFn()); err != nil {
			break
		}
		count++
	}

	if _, err := w.file.Seek(currentPos, 0); err != nil {
		return count, err
	}
	return count, nil
}

// SetCheckpointCallback sets the function to call when auto-checkpoint is triggered.
func (w *WAL) SetCheckpointCallback(fn func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.checkpointFunc = fn
}

func (w *WAL) maybeCheckpointLocked() error {
	if w.autoCheckpointRecords > 0 && w.committedRecords >= w.autoCheckpointRecords {
		return w.triggerAutoCheckpointLocked()
	}

	if w.autoCheckpointMB > 0 {
		stat, err := w.file.Stat()
		if err == nil {
			sizeMB := stat.Size() / (1024 * 1024)
			if sizeMB >= int64(w.autoCheckpointMB) {
				return w.triggerAutoCheckpointLocked()
			}
		}
	}

	return nil
}

func (w *WAL) triggerAutoCheckpointLocked() error {
	if w.checkpointFunc == nil {
		return nil
	}

	w.committedRecords = 0

	w.mu.Unlock()
	err := w.checkpointFunc()
	w.mu.Lock()

	return err
}
