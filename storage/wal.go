package storage

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// WAL records uncommitted BFT votes-in-flight as an append-only log of
// (height, round, bytes) records fsynced after each write, per spec.md
// §6: "A WAL records uncommitted BFT state (signed votes in flight) so
// a restart resumes mid-round." Its on-disk format is deliberately
// simple — a flat record stream, no index, no compaction — since the
// only consumer is a single node replaying its own in-flight state on
// restart, never a peer.
type WAL struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer
}

// OpenWAL opens (creating if absent) the WAL file at path for
// appending; Replay opens its own reader on the same file.
func OpenWAL(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	return &WAL{file: f, w: bufio.NewWriter(f)}, nil
}

// Record is one WAL entry: an in-flight BFT message at (Height, Round).
type Record struct {
	Height uint64
	Round  uint64
	Bytes  []byte
}

// Append writes r to the log and fsyncs before returning, per spec.md
// §6 "fsynced after each write" — a record the node believes it wrote
// must survive a crash on the next line.
func (w *WAL) Append(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var header [20]byte
	binary.BigEndian.PutUint64(header[0:8], r.Height)
	binary.BigEndian.PutUint64(header[8:16], r.Round)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(r.Bytes)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(r.Bytes); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// Replay reads every record currently in the log, in write order, for
// the adapter to resume mid-round on restart. It reopens the file for
// reading independently of the append cursor so a concurrent Append
// (there should be none during startup replay) cannot corrupt the scan.
func (w *WAL) Replay() ([]Record, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return nil, err
	}
	r, err := os.Open(w.file.Name())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Record
	br := bufio.NewReader(r)
	for {
		var header [20]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		size := binary.BigEndian.Uint32(header[16:20])
		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, err
		}
		out = append(out, Record{
			Height: binary.BigEndian.Uint64(header[0:8]),
			Round:  binary.BigEndian.Uint64(header[8:16]),
			Bytes:  body,
		})
	}
	return out, nil
}

// Truncate discards every record up to and including height, called
// once the adapter has committed that height and the in-flight votes
// below it are no longer needed to resume a round.
func (w *WAL) Truncate(height uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.w.Flush(); err != nil {
		return err
	}
	records, err := w.readLocked()
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.Height > height {
			kept = append(kept, r)
		}
	}

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	w.w = bufio.NewWriter(w.file)
	for _, r := range kept {
		var header [20]byte
		binary.BigEndian.PutUint64(header[0:8], r.Height)
		binary.BigEndian.PutUint64(header[8:16], r.Round)
		binary.BigEndian.PutUint32(header[16:20], uint32(len(r.Bytes)))
		if _, err := w.w.Write(header[:]); err != nil {
			return err
		}
		if _, err := w.w.Write(r.Bytes); err != nil {
			return err
		}
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

// readLocked is Replay's scan without the mutex, for Truncate's
// internal use (caller already holds w.mu).
func (w *WAL) readLocked() ([]Record, error) {
	r, err := os.Open(w.file.Name())
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var out []Record
	br := bufio.NewReader(r)
	for {
		var header [20]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		size := binary.BigEndian.Uint32(header[16:20])
		body := make([]byte, size)
		if _, err := io.ReadFull(br, body); err != nil {
			return nil, err
		}
		out = append(out, Record{
			Height: binary.BigEndian.Uint64(header[0:8]),
			Round:  binary.BigEndian.Uint64(header[8:16]),
			Bytes:  body,
		})
	}
	return out, nil
}

// Close flushes and closes the underlying file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
