// Package codec implements the binary on-disk framing for snapshots and
// commit logs: file headers with checksum-terminated block sections,
// snapshot bodies, and commit log bodies (spec.md §6.2 "Binary formats").
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/untoldecay/partitionstore/internal/errs"
	"github.com/untoldecay/partitionstore/internal/ids"
	"github.com/untoldecay/partitionstore/internal/sum"
)

// FileKind distinguishes a snapshot file from a commit log file; each has
// its own magic prefix.
type FileKind int

const (
	Snapshot FileKind = iota
	CommitLog
)

const (
	magicSnapshot  = "PIPPINSS"
	magicCommitLog = "PIPPINCL"
)

// latestVersion is always emitted on write, regardless of what was read.
const latestVersion = 20160227

// knownVersions lists every header version this codec accepts for read.
var knownVersions = map[int]bool{
	20150929: true,
	20160105: true,
	20160201: true,
	20160221: true,
	20160222: true,
	20160227: true,
}

// checksumAlgo is the only checksum algorithm this codec supports at
// runtime; "SHA-2 256" is explicitly rejected, anything else is unknown.
const checksumAlgo = "BLAKE2 16"

// Header is the common file-header prefix shared by snapshot and commit
// log files.
type Header struct {
	Kind       FileKind
	Version    int // set on read; ignored on write (latest is always emitted)
	RepoName   string
	PartId     ids.PartId // ids.NoPart if absent
	Remarks    []string
	UserFields [][]byte
}

// ValidateRepoName enforces the 1-16 UTF-8-byte repo name constraint
// (spec.md §4.6 "Create").
func ValidateRepoName(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("%w: repo name missing (length 0)", errs.ErrArg)
	}
	if len(name) > 16 {
		return fmt.Errorf("%w: repo name too long (max 16 UTF-8 bytes)", errs.ErrArg)
	}
	return nil
}

// WriteHeader serializes h to w, always in the latest header version,
// terminated by the SUM block and a trailing 32-byte checksum of
// everything preceding it.
func WriteHeader(w io.Writer, h Header) error {
	if err := ValidateRepoName(h.RepoName); err != nil {
		return err
	}

	var buf bytes.Buffer
	switch h.Kind {
	case Snapshot:
		fmt.Fprintf(&buf, "%s%d", magicSnapshot, latestVersion)
	case CommitLog:
		fmt.Fprintf(&buf, "%s%d", magicCommitLog, latestVersion)
	default:
		return fmt.Errorf("%w: unknown file kind", errs.ErrArg)
	}

	buf.WriteString(h.RepoName)
	padZeros(&buf, 16-len(h.RepoName))

	if h.PartId != ids.NoPart {
		buf.WriteString("HPARTID ")
		var idBytes [8]byte
		binary.BigEndian.PutUint64(idBytes[:], h.PartId.Num())
		buf.Write(idBytes[:])
	}

	for _, rem := range h.Remarks {
		if err := writeQBlock(&buf, "R", []byte(rem)); err != nil {
			return err
		}
	}
	for _, uf := range h.UserFields {
		if err := writeQBlock(&buf, "U", uf); err != nil {
			return err
		}
	}

	buf.WriteString("HSUM " + checksumAlgo)
	padZeros(&buf, 15-len("SUM "+checksumAlgo))

	headerSum := sum.Of(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(headerSum.Slice())
	return err
}

// writeQBlock emits a block whose payload is prefix+content: an 'H' block
// (16 bytes total) if it fits, otherwise a length-prefixed 'Q' block.
func writeQBlock(buf *bytes.Buffer, prefix string, content []byte) error {
	payloadLen := len(prefix) + len(content)
	if payloadLen <= 15 {
		buf.WriteByte('H')
		buf.WriteString(prefix)
		buf.Write(content)
		padZeros(buf, 15-payloadLen)
		return nil
	}
	// Qx<prefix><content>, total block size x*16, x in 1..35.
	n := (payloadLen + 2 + 15) / 16
	if n > 35 {
		return fmt.Errorf("%w: block payload too long (%d bytes)", errs.ErrArg, payloadLen)
	}
	buf.WriteByte('Q')
	buf.WriteByte(lenChar(n))
	buf.WriteString(prefix)
	buf.Write(content)
	padZeros(buf, n*16-payloadLen-2)
	return nil
}

func lenChar(n int) byte {
	if n <= 9 {
		return '0' + byte(n)
	}
	return 'A' - 10 + byte(n)
}

func padZeros(buf *bytes.Buffer, n int) {
	for i := 0; i < n; i++ {
		buf.WriteByte(0)
	}
}

// ReadHeader parses a file header from r, validating its version and
// checksum. It returns errs.ErrArg-wrapped errors for malformed input and
// a plain error naming an unsupported checksum algorithm.
func ReadHeader(r io.Reader) (Header, error) {
	var raw bytes.Buffer
	tr := io.TeeReader(r, &raw)

	var magicVer [16]byte
	if _, err := io.ReadFull(tr, magicVer[:]); err != nil {
		return Header{}, fmt.Errorf("reading file magic: %w", err)
	}
	version, err := parseVersion(magicVer[8:16])
	if err != nil {
		return Header{}, err
	}
	if !knownVersions[version] {
		return Header{}, fmt.Errorf("%w: unknown header version %d", errs.ErrArg, version)
	}

	var h Header
	h.Version = version
	switch string(magicVer[0:8]) {
	case magicSnapshot:
		h.Kind = Snapshot
	case magicCommitLog:
		h.Kind = CommitLog
	default:
		return Header{}, fmt.Errorf("%w: not a recognized file format", errs.ErrArg)
	}

	var nameBuf [16]byte
	if _, err := io.ReadFull(tr, nameBuf[:]); err != nil {
		return Header{}, fmt.Errorf("reading repo name: %w", err)
	}
	h.RepoName = strings.TrimRight(string(nameBuf[:]), "\x00")

	for {
		block, err := readBlock(tr)
		if err != nil {
			return Header{}, err
		}
		done, err := applyBlock(&h, block)
		if err != nil {
			return Header{}, err
		}
		if done {
			break
		}
	}

	var trailer [sum.Bytes]byte
	if _, err := io.ReadFull(r, trailer[:]); err != nil {
		return Header{}, fmt.Errorf("reading header checksum: %w", err)
	}
	want := sum.Of(raw.Bytes())
	if !bytes.Equal(want.Slice(), trailer[:]) {
		return Header{}, fmt.Errorf("%w: header checksum mismatch", errs.ErrArg)
	}

	return h, nil
}

func parseVersion(digits []byte) (int, error) {
	v := 0
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: malformed header version", errs.ErrArg)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}

// readBlock reads one header block and returns its payload (excluding the
// 'H' or 'Qx' framing byte(s)).
func readBlock(r io.Reader) ([]byte, error) {
	var tag [1]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, fmt.Errorf("reading header block tag: %w", err)
	}
	switch tag[0] {
	case 'H':
		payload := make([]byte, 15)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading header block: %w", err)
		}
		return payload, nil
	case 'Q':
		var lc [1]byte
		if _, err := io.ReadFull(r, lc[:]); err != nil {
			return nil, fmt.Errorf("reading header block length: %w", err)
		}
		x, err := decodeLenChar(lc[0])
		if err != nil {
			return nil, err
		}
		payload := make([]byte, x*16-2)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("reading header block: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("%w: unexpected header block tag %q", errs.ErrArg, tag[0])
	}
}

func decodeLenChar(c byte) (int, error) {
	switch {
	case c >= '1' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, nil
	default:
		return 0, fmt.Errorf("%w: invalid header block length specifier %q", errs.ErrArg, c)
	}
}

// applyBlock classifies a decoded block payload and folds it into h.
// Returns done=true once the SUM block is seen: it always marks the end
// of the header's block section.
func applyBlock(h *Header, block []byte) (done bool, err error) {
	switch {
	case bytes.HasPrefix(block, []byte("SUM ")):
		algo := strings.TrimRight(string(block[4:]), "\x00")
		if algo == "SHA-2 256" {
			return false, fmt.Errorf("file uses SHA-2 256 checksum; this build only supports %s", checksumAlgo)
		}
		if algo != checksumAlgo {
			return false, fmt.Errorf("%w: unknown checksum algorithm %q", errs.ErrArg, algo)
		}
		return true, nil
	case bytes.HasPrefix(block, []byte("PARTID ")):
		if len(block) < 15 {
			return false, fmt.Errorf("%w: truncated PARTID block", errs.ErrArg)
		}
		n := binary.BigEndian.Uint64(block[7:15])
		p, err := ids.FromNum(n)
		if err != nil {
			return false, fmt.Errorf("%w: invalid partition number in header", errs.ErrArg)
		}
		h.PartId = p
		return false, nil
	case len(block) > 0 && block[0] == 'R':
		h.Remarks = append(h.Remarks, strings.TrimRight(string(block[1:]), "\x00"))
		return false, nil
	case len(block) > 0 && block[0] == 'U':
		h.UserFields = append(h.UserFields, bytes.TrimRight(append([]byte(nil), block[1:]...), "\x00"))
		return false, nil
	case len(block) > 0 && block[0] == 'O':
		// Optional extension: unrecognized content is silently ignored.
		return false, nil
	case len(block) > 0 && block[0] >= 'A' && block[0] <= 'Z':
		// Mandatory extension we don't recognize: the block is skipped
		// and the read continues. No warning is emitted for it.
		return false, nil
	default:
		return false, nil
	}
}
