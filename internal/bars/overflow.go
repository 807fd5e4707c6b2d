package bars

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"os"
	"time"

	"github.com/abdoElHodaky/tradingsuite/internal/money"
	tserrors "github.com/abdoElHodaky/tradingsuite/pkg/errors"
	"golang.org/x/sys/unix"
)

// Overflow store binary format:
//
//	header (24 bytes): magic u32 | version u32 | tick_scaled i64 | tz_code i64
//	segment: up to segmentRecords fixed-width records, followed by a
//	         CRC32C (Castagnoli) trailer over the segment's raw bytes.
//	record (56 bytes): bucket_start_ns i64 | open/high/low/close i64 (each
//	         scaled by fixedScale) | volume i64 | trades i64.
const (
	overflowMagic   uint32 = 0x54524253 // "TRBS"
	overflowVersion uint32 = 1
	headerSize             = 24
	recordSize             = 56
	segmentRecords         = 4096
	fixedScale      int64  = 1e8
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// SegmentWriter appends bars to an overflow file, one segment (4096
// records) at a time, each segment sealed with a CRC32C trailer. Writes
// are append-only; the Bar Aggregator is the sole owner of the file.
type SegmentWriter struct {
	f       *os.File
	w       *bufio.Writer
	pending []byte // bytes of the in-progress segment, for the CRC trailer
}

// OpenSegmentWriter opens (creating if needed) the overflow file at path
// and writes the header if the file is new.
func OpenSegmentWriter(path string, tickSize money.Decimal, tzCode int64) (*SegmentWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, tserrors.Wrap(tserrors.CodeTimeout, err, "open overflow segment file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	sw := &SegmentWriter{f: f, w: bufio.NewWriter(f)}
	if info.Size() == 0 {
		if err := sw.writeHeader(tickSize, tzCode); err != nil {
			f.Close()
			return nil, err
		}
	}
	return sw, nil
}

func (s *SegmentWriter) writeHeader(tickSize money.Decimal, tzCode int64) error {
	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], overflowMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], overflowVersion)
	scaled, _ := tickSize.Mul(money.MustNew("100000000")).Float64()
	binary.LittleEndian.PutUint64(hdr[8:16], uint64(int64(scaled)))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(tzCode))
	_, err := s.w.Write(hdr)
	return err
}

// AppendBars writes bars to the current segment, sealing and starting a
// new segment every segmentRecords records.
func (s *SegmentWriter) AppendBars(bars []Bar) error {
	for _, b := range bars {
		rec := encodeRecord(b)
		if _, err := s.w.Write(rec); err != nil {
			return err
		}
		s.pending = append(s.pending, rec...)
		if len(s.pending)/recordSize >= segmentRecords {
			if err := s.sealSegment(); err != nil {
				return err
			}
		}
	}
	return s.w.Flush()
}

// Close seals any partial segment and flushes to disk.
func (s *SegmentWriter) Close() error {
	if len(s.pending) > 0 {
		if err := s.sealSegment(); err != nil {
			return err
		}
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}

func (s *SegmentWriter) sealSegment() error {
	sum := crc32.Checksum(s.pending, crcTable)
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], sum)
	if _, err := s.w.Write(trailer[:]); err != nil {
		return err
	}
	s.pending = s.pending[:0]
	return s.w.Flush()
}

func encodeRecord(b Bar) []byte {
	rec := make([]byte, recordSize)
	binary.LittleEndian.PutUint64(rec[0:8], uint64(b.BucketStart.UnixNano()))
	putFixed(rec[8:16], b.Open)
	putFixed(rec[16:24], b.High)
	putFixed(rec[24:32], b.Low)
	putFixed(rec[32:40], b.Close)
	binary.LittleEndian.PutUint64(rec[40:48], uint64(b.Volume))
	binary.LittleEndian.PutUint64(rec[48:56], uint64(b.TradeCount))
	return rec
}

func putFixed(dst []byte, d money.Decimal) {
	scaled, _ := d.Mul(money.MustNew("100000000")).Float64()
	binary.LittleEndian.PutUint64(dst, uint64(int64(scaled)))
}

func readFixed(src []byte) money.Decimal {
	v := int64(binary.LittleEndian.Uint64(src))
	return money.MustNew(itoa(v)).Div(money.MustNew("100000000"))
}

func itoa(v int64) string {
	// small local base-10 formatter used by readFixed, so this file
	// does not import strconv.
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ReadSegments memory-maps path read-only for lock-free reads and
// decodes every complete, CRC-valid segment into Bars. A segment
// whose trailing CRC does not match is tamper-tolerant: it is skipped and
// reported via badSegments, not treated as fatal.
func ReadSegments(path string) (decoded []Bar, badSegments int, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := int(info.Size())
	if size < headerSize {
		return nil, 0, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, tserrors.Wrap(tserrors.CodeTimeout, err, "mmap overflow segment file")
	}
	defer unix.Munmap(data)

	magic := binary.LittleEndian.Uint32(data[0:4])
	if magic != overflowMagic {
		return nil, 0, tserrors.New(tserrors.CodeProtocolCorruption, "overflow file: bad magic")
	}

	offset := headerSize
	maxSegmentBytes := segmentRecords * recordSize
	for offset < size {
		remaining := size - offset
		segBytes := remaining - 4 // hypothetically all of it is one sealed segment
		if segBytes > maxSegmentBytes {
			segBytes = maxSegmentBytes
		}
		segBytes -= segBytes % recordSize
		if segBytes <= 0 || offset+segBytes+4 > size {
			break // trailing partial segment, not yet sealed; not durable to readers yet
		}
		// A writer closed before segmentRecords records seals a shorter
		// segment, so take the first record boundary whose running CRC
		// matches the four bytes after it; with no match the segment is
		// corrupt and taken to span segBytes.
		running := uint32(0)
		for n := recordSize; n < segBytes; n += recordSize {
			running = crc32.Update(running, crcTable, data[offset+n-recordSize:offset+n])
			if running == binary.LittleEndian.Uint32(data[offset+n:offset+n+4]) {
				segBytes = n
				break
			}
		}

		raw := data[offset : offset+segBytes]
		trailer := binary.LittleEndian.Uint32(data[offset+segBytes : offset+segBytes+4])
		offset += segBytes + 4

		if crc32.Checksum(raw, crcTable) != trailer {
			badSegments++
			continue
		}
		for i := 0; i+recordSize <= len(raw); i += recordSize {
			decoded = append(decoded, decodeRecord(raw[i:i+recordSize]))
		}
	}
	return decoded, badSegments, nil
}

func decodeRecord(rec []byte) Bar {
	return Bar{
		BucketStart: time.Unix(0, int64(binary.LittleEndian.Uint64(rec[0:8]))),
		Open:        readFixed(rec[8:16]),
		High:        readFixed(rec[16:24]),
		Low:         readFixed(rec[24:32]),
		Close:       readFixed(rec[32:40]),
		Volume:      int64(binary.LittleEndian.Uint64(rec[40:48])),
		TradeCount:  int64(binary.LittleEndian.Uint64(rec[48:56])),
	}
}
