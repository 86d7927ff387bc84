package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigurn/crc16"
)

const (
	sectorMagic  = 0xA55A
	headerSize   = 4 // magic:u16 + seq:u16
	recordHeader = 3 // tag:u8 + len:u16
	crcSize      = 2
)

var crcTable = crc16.MakeTable(crc16.CCITT_FALSE)

// ErrCorrupt names a record whose CRC doesn't match its payload, spec
// §7's "Logical" error class. The boot scan does not return it: it
// skips such a record and keeps going.
var ErrCorrupt = errors.New("storage: record CRC mismatch")

// ErrRecordTooLarge is returned when a single record can never fit in
// an empty sector.
var ErrRecordTooLarge = errors.New("storage: record exceeds sector capacity")

// ErrWriteFailed is the Fatal-class error spec §7 describes: a flash
// write failed even after a compaction retry.
var ErrWriteFailed = errors.New("storage: write failed after compaction retry")

// Engine is the sector-based append-only log spec §4.K describes. It
// owns all flash I/O; callers enqueue writes from the single executor
// goroutine (the Vial service), matching spec §5's "storage is owned
// exclusively by the storage task" shared-resource rule.
type Engine struct {
	flash  Flash
	sector int // currently active sector
	seq    uint16
	offset int // next free byte in the active sector
	index  map[string]Record
}

// Open scans flash for the highest-sequence valid sector header,
// replays its records into an in-RAM index (newest write per key,
// since writes are append-only and later position always wins), and
// returns a ready Engine. If no sector carries a valid header (a
// freshly-erased chip), sector 0 is initialized as the active sector
// with seq 0.
func Open(flash Flash) (*Engine, error) {
	if flash.NumSectors() < 2 {
		return nil, fmt.Errorf("storage: need at least 2 sectors, got %d", flash.NumSectors())
	}

	e := &Engine{flash: flash, sector: -1}
	hdr := make([]byte, headerSize)
	for s := 0; s < flash.NumSectors(); s++ {
		if err := flash.ReadAt(s, 0, hdr); err != nil {
			return nil, err
		}
		magic := binary.BigEndian.Uint16(hdr[0:])
		if magic != sectorMagic {
			continue
		}
		seq := binary.BigEndian.Uint16(hdr[2:])
		if e.sector == -1 || seq > e.seq {
			e.sector, e.seq = s, seq
		}
	}

	if e.sector == -1 {
		if err := e.initSector(0, 0); err != nil {
			return nil, err
		}
		e.sector, e.seq, e.offset = 0, 0, headerSize
		e.index = make(map[string]Record)
		return e, nil
	}

	index, offset, err := e.scan(e.sector)
	if err != nil {
		return nil, err
	}
	e.index, e.offset = index, offset
	return e, nil
}

func (e *Engine) initSector(sector int, seq uint16) error {
	if err := e.flash.EraseSector(sector); err != nil {
		return err
	}
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint16(hdr[0:], sectorMagic)
	binary.BigEndian.PutUint16(hdr[2:], seq)
	return e.flash.WriteAt(sector, 0, hdr)
}

// scan replays every well-formed record in sector from the header
// onward, returning the newest-per-key index and the offset of the
// first free (unwritten) byte. A corrupt record (CRC mismatch) is
// skipped and the scan continues after it, so records of other keys
// still replay and new writes never land on already-programmed bytes.
func (e *Engine) scan(sector int) (map[string]Record, int, error) {
	index := make(map[string]Record)
	offset := headerSize
	sectorSize := e.flash.SectorSize()

	for offset+recordHeader <= sectorSize {
		head := make([]byte, recordHeader)
		if err := e.flash.ReadAt(sector, offset, head); err != nil {
			return nil, 0, err
		}
		tag := head[0]
		length := int(binary.BigEndian.Uint16(head[1:]))
		if tag == 0xFF || length == 0xFFFF {
			break // unwritten (erased) space
		}
		total := recordHeader + length + crcSize
		if offset+total > sectorSize {
			break // torn trailing write, treat as end of log
		}

		body := make([]byte, total)
		if err := e.flash.ReadAt(sector, offset, body); err != nil {
			return nil, 0, err
		}
		payload := body[recordHeader : recordHeader+length]
		wantCRC := binary.BigEndian.Uint16(body[recordHeader+length:])
		gotCRC := crc16.Checksum(body[:recordHeader+length], crcTable)
		if gotCRC != wantCRC {
			offset += total // corruption: skip this record, keep scanning
			continue
		}

		key, ok := decodeKey(Tag(tag), payload)
		if ok {
			index[key] = Record{Tag: Tag(tag), Key: key, Payload: append([]byte(nil), payload...)}
		}
		offset += total
	}
	return index, offset, nil
}

// Records returns a snapshot of every key's newest record, for callers
// to replay into their in-RAM tables at boot.
func (e *Engine) Records() []Record {
	out := make([]Record, 0, len(e.index))
	for _, r := range e.index {
		out = append(out, r)
	}
	return out
}

// keyer is satisfied by every typed record in record.go; WriteKeymapKey
// et al. build the (tag, key, payload) triple through it.
type keyer interface {
	key() string
	encode() []byte
}

func (e *Engine) write(tag Tag, rec keyer) error {
	payload := rec.encode()
	key := rec.key()
	if err := e.append(tag, key, payload); err != nil {
		return err
	}
	return nil
}

// WriteKeymapKey persists a keymap cell write.
func (e *Engine) WriteKeymapKey(r KeymapKey) error { return e.write(TagKeymapKey, r) }

// WriteEncoderConfig persists an encoder binding.
func (e *Engine) WriteEncoderConfig(r EncoderConfig) error { return e.write(TagEncoderConfig, r) }

// WriteComboData persists a combo table entry.
func (e *Engine) WriteComboData(r ComboData) error { return e.write(TagComboData, r) }

// WriteForkData persists a fork table entry.
func (e *Engine) WriteForkData(r ForkData) error { return e.write(TagForkData, r) }

// WriteMacroBlob persists the macro bytecode buffer.
func (e *Engine) WriteMacroBlob(r MacroBlob) error { return e.write(TagMacroBlob, r) }

// WriteBondInfo persists a BLE bond record.
func (e *Engine) WriteBondInfo(r BondInfo) error { return e.write(TagBondInfo, r) }

// WriteLayoutOption persists the layout-options bitfield.
func (e *Engine) WriteLayoutOption(r LayoutOption) error { return e.write(TagLayoutOption, r) }

// WriteMorseData persists a tap-hold/tap-dance table entry.
func (e *Engine) WriteMorseData(r MorseData) error { return e.write(TagMorseData, r) }

// append appends one record to the active sector, compacting first (and
// retrying once) if it doesn't currently fit.
func (e *Engine) append(tag Tag, key string, payload []byte) error {
	total := recordHeader + len(payload) + crcSize
	if headerSize+total > e.flash.SectorSize() {
		return ErrRecordTooLarge
	}

	if e.offset+total > e.flash.SectorSize() {
		if err := e.compact(); err != nil {
			return err
		}
		if e.offset+total > e.flash.SectorSize() {
			return ErrWriteFailed
		}
	}

	buf := make([]byte, total)
	buf[0] = byte(tag)
	binary.BigEndian.PutUint16(buf[1:], uint16(len(payload)))
	copy(buf[recordHeader:], payload)
	binary.BigEndian.PutUint16(buf[recordHeader+len(payload):], crc16.Checksum(buf[:recordHeader+len(payload)], crcTable))

	if err := e.flash.WriteAt(e.sector, e.offset, buf); err != nil {
		if cErr := e.compact(); cErr != nil {
			return ErrWriteFailed
		}
		if err := e.flash.WriteAt(e.sector, e.offset, buf); err != nil {
			return ErrWriteFailed
		}
	}

	e.index[key] = Record{Tag: tag, Key: key, Payload: append([]byte(nil), payload...)}
	e.offset += total
	return nil
}

// compact copies the newest record per key into the next sector,
// advances the active sector to it, and erases the old one. The
// two-sector minimum this module requires guarantees a sector is
// always available to compact into.
func (e *Engine) compact() error {
	next := (e.sector + 1) % e.flash.NumSectors()
	newSeq := e.seq + 1

	if err := e.initSector(next, newSeq); err != nil {
		return err
	}

	offset := headerSize
	for _, r := range e.index {
		total := recordHeader + len(r.Payload) + crcSize
		buf := make([]byte, total)
		buf[0] = byte(r.Tag)
		binary.BigEndian.PutUint16(buf[1:], uint16(len(r.Payload)))
		copy(buf[recordHeader:], r.Payload)
		binary.BigEndian.PutUint16(buf[recordHeader+len(r.Payload):], crc16.Checksum(buf[:recordHeader+len(r.Payload)], crcTable))
		if offset+total > e.flash.SectorSize() {
			return ErrWriteFailed
		}
		if err := e.flash.WriteAt(next, offset, buf); err != nil {
			return ErrWriteFailed
		}
		offset += total
	}

	old := e.sector
	e.sector, e.seq, e.offset = next, newSeq, offset
	return e.flash.EraseSector(old)
}

// Reset implements the Vial EepromReset opcode: erases every sector
// and reinitializes sector 0 as active with seq 0, dropping all
// stored records.
func (e *Engine) Reset() error {
	for s := 0; s < e.flash.NumSectors(); s++ {
		if err := e.flash.EraseSector(s); err != nil {
			return err
		}
	}
	if err := e.initSector(0, 0); err != nil {
		return err
	}
	e.sector, e.seq, e.offset = 0, 0, headerSize
	e.index = make(map[string]Record)
	return nil
}
