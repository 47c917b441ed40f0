package l2frames

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrUnsupportedPCD is returned for PCD files this reader cannot decode,
// such as binary_compressed data or clouds without x, y and z fields.
var ErrUnsupportedPCD = errors.New("unsupported PCD file")

// maxPCDPoints bounds the POINTS header so a corrupt file cannot force a
// huge allocation. A full 360° rotation is ~70k points.
const maxPCDPoints = 10_000_000

// Per-record limits. Real sensor clouds carry a handful of scalar fields;
// COUNT > 1 appears only for small descriptors.
const (
	maxPCDFieldCount  = 16
	maxPCDRecordBytes = 4096
)

// pcdField describes one column of a PCD record.
type pcdField struct {
	name  string
	size  int  // bytes per element
	kind  byte // 'F', 'I' or 'U'
	count int  // elements per point
}

// pcdHeader is the parsed header of a PCD v0.7 file.
type pcdHeader struct {
	fields []pcdField
	points int
	data   string // "ascii" or "binary"
}

// column returns the element offset of the named field within a record, or -1.
func (h *pcdHeader) column(name string) (offset int, field pcdField) {
	offset = 0
	for _, f := range h.fields {
		if f.name == name {
			return offset, f
		}
		offset += f.count
	}
	return -1, pcdField{}
}

// recordSize returns the byte length of one binary record.
func (h *pcdHeader) recordSize() int {
	n := 0
	for _, f := range h.fields {
		n += f.size * f.count
	}
	return n
}

// ReadPCD decodes a point cloud in PCD format (ASCII or binary data).
// x, y and z are required; an intensity field is read when present and
// clamped to 0..255. Points with a non-finite coordinate are dropped.
func ReadPCD(r io.Reader) ([]Point, error) {
	br := bufio.NewReader(r)
	h, err := readPCDHeader(br)
	if err != nil {
		return nil, err
	}
	switch h.data {
	case "ascii":
		return readPCDASCII(br, h)
	case "binary":
		return readPCDBinary(br, h)
	default:
		return nil, fmt.Errorf("%w: DATA %s", ErrUnsupportedPCD, h.data)
	}
}

// LoadPCDFile reads the PCD file at path.
func LoadPCDFile(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcd: %w", err)
	}
	defer f.Close()

	points, err := ReadPCD(f)
	if err != nil {
		return nil, fmt.Errorf("read pcd %s: %w", path, err)
	}
	return points, nil
}

func readPCDHeader(br *bufio.Reader) (*pcdHeader, error) {
	h := &pcdHeader{points: -1}
	var sizes, counts []int
	var kinds []byte
	width, height := -1, -1

	for h.data == "" {
		line, err := br.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: header ended before DATA", ErrUnsupportedPCD)
			}
			return nil, fmt.Errorf("read pcd header: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens := strings.Fields(line)
		key, values := strings.ToUpper(tokens[0]), tokens[1:]

		switch key {
		case "VERSION", "VIEWPOINT":
		case "FIELDS", "COLUMNS":
			h.fields = make([]pcdField, len(values))
			for i, name := range values {
				h.fields[i].name = strings.ToLower(name)
			}
		case "SIZE":
			if sizes, err = parseInts(key, values); err != nil {
				return nil, err
			}
		case "TYPE":
			kinds = make([]byte, len(values))
			for i, v := range values {
				kinds[i] = strings.ToUpper(v)[0]
			}
		case "COUNT":
			if counts, err = parseInts(key, values); err != nil {
				return nil, err
			}
		case "WIDTH", "HEIGHT", "POINTS":
			n, err := parseInts(key, values)
			if err != nil || len(n) != 1 || n[0] < 0 {
				return nil, fmt.Errorf("%w: bad %s %q", ErrUnsupportedPCD, key, strings.Join(values, " "))
			}
			switch key {
			case "WIDTH":
				width = n[0]
			case "HEIGHT":
				height = n[0]
			default:
				h.points = n[0]
			}
		case "DATA":
			if len(values) != 1 {
				return nil, fmt.Errorf("%w: bad DATA line", ErrUnsupportedPCD)
			}
			h.data = strings.ToLower(values[0])
		default:
			return nil, fmt.Errorf("%w: unknown header key %q", ErrUnsupportedPCD, tokens[0])
		}
	}

	if len(h.fields) == 0 {
		return nil, fmt.Errorf("%w: no FIELDS", ErrUnsupportedPCD)
	}
	if counts == nil {
		counts = make([]int, len(h.fields))
		for i := range counts {
			counts[i] = 1
		}
	}
	if len(sizes) != len(h.fields) || len(kinds) != len(h.fields) || len(counts) != len(h.fields) {
		return nil, fmt.Errorf("%w: FIELDS, SIZE, TYPE and COUNT lengths differ", ErrUnsupportedPCD)
	}
	for i := range h.fields {
		f := &h.fields[i]
		f.size, f.kind, f.count = sizes[i], kinds[i], counts[i]
		if !validPCDType(f.kind, f.size) || f.count < 1 || f.count > maxPCDFieldCount {
			return nil, fmt.Errorf("%w: field %s has TYPE %c SIZE %d COUNT %d", ErrUnsupportedPCD, f.name, f.kind, f.size, f.count)
		}
	}
	// Each field is at most 8*maxPCDFieldCount bytes, so the running sum
	// cannot overflow before it crosses the limit.
	recordBytes := 0
	for _, f := range h.fields {
		recordBytes += f.size * f.count
		if recordBytes > maxPCDRecordBytes {
			return nil, fmt.Errorf("%w: record exceeds %d bytes", ErrUnsupportedPCD, maxPCDRecordBytes)
		}
	}
	for _, axis := range []string{"x", "y", "z"} {
		if off, _ := h.column(axis); off < 0 {
			return nil, fmt.Errorf("%w: missing %s field", ErrUnsupportedPCD, axis)
		}
	}

	if h.points < 0 {
		if width < 0 {
			return nil, fmt.Errorf("%w: neither POINTS nor WIDTH given", ErrUnsupportedPCD)
		}
		if height < 0 {
			height = 1
		}
		if width > maxPCDPoints || height > maxPCDPoints || (height > 0 && width > maxPCDPoints/height) {
			return nil, fmt.Errorf("%w: WIDTH %d x HEIGHT %d exceeds limit %d", ErrUnsupportedPCD, width, height, maxPCDPoints)
		}
		h.points = width * height
	}
	if h.points > maxPCDPoints {
		return nil, fmt.Errorf("%w: %d points exceeds limit %d", ErrUnsupportedPCD, h.points, maxPCDPoints)
	}
	return h, nil
}

func parseInts(key string, values []string) ([]int, error) {
	out := make([]int, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s value %q", ErrUnsupportedPCD, key, v)
		}
		out[i] = n
	}
	return out, nil
}

func validPCDType(kind byte, size int) bool {
	switch kind {
	case 'F':
		return size == 4 || size == 8
	case 'I', 'U':
		return size == 1 || size == 2 || size == 4 || size == 8
	}
	return false
}

// pointFromRecord builds a Point from one record's decoded elements.
// ok is false when a coordinate is not finite.
func pointFromRecord(h *pcdHeader, values []float64) (Point, bool) {
	xo, _ := h.column("x")
	yo, _ := h.column("y")
	zo, _ := h.column("z")
	p := Point{X: values[xo], Y: values[yo], Z: values[zo]}
	if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
		return Point{}, false
	}
	if ic, _ := h.column("intensity"); ic >= 0 {
		p.Intensity = clampIntensity(values[ic])
	}
	return p, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampIntensity(v float64) uint8 {
	switch {
	case !finite(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}

// initialCapacity caps the preallocation; the header count is untrusted.
func initialCapacity(n int) int {
	const maxPrealloc = 1 << 17
	if n > maxPrealloc {
		return maxPrealloc
	}
	return n
}

func elementsPerRecord(h *pcdHeader) int {
	n := 0
	for _, f := range h.fields {
		n += f.count
	}
	return n
}

func readPCDASCII(br *bufio.Reader, h *pcdHeader) ([]Point, error) {
	points := make([]Point, 0, initialCapacity(h.points))
	values := make([]float64, elementsPerRecord(h))
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	read := 0
	for read < h.points && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tokens := strings.Fields(line)
		if len(tokens) != len(values) {
			return nil, fmt.Errorf("pcd record %d: want %d values, got %d", read, len(values), len(tokens))
		}
		for i, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("pcd record %d: %w", read, err)
			}
			values[i] = v
		}
		read++
		if p, ok := pointFromRecord(h, values); ok {
			points = append(points, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pcd data: %w", err)
	}
	if read < h.points {
		return nil, fmt.Errorf("pcd data truncated: read %d of %d points", read, h.points)
	}
	return points, nil
}

func readPCDBinary(br *bufio.Reader, h *pcdHeader) ([]Point, error) {
	points := make([]Point, 0, initialCapacity(h.points))
	values := make([]float64, elementsPerRecord(h))
	record := make([]byte, h.recordSize())

	for read := 0; read < h.points; read++ {
		if _, err := io.ReadFull(br, record); err != nil {
			return nil, fmt.Errorf("pcd data truncated at point %d of %d: %w", read, h.points, err)
		}
		off, vi := 0, 0
		for _, f := range h.fields {
			for c := 0; c < f.count; c++ {
				values[vi] = decodePCDValue(record[off:off+f.size], f)
				off += f.size
				vi++
			}
		}
		if p, ok := pointFromRecord(h, values); ok {
			points = append(points, p)
		}
	}
	return points, nil
}

// decodePCDValue decodes one little-endian element.
func decodePCDValue(b []byte, f pcdField) float64 {
	le := binary.LittleEndian
	switch f.kind {
	case 'F':
		if f.size == 4 {
			return float64(math.Float32frombits(le.Uint32(b)))
		}
		return math.Float64frombits(le.Uint64(b))
	case 'I':
		switch f.size {
		case 1:
			return float64(int8(b[0]))
		case 2:
			return float64(int16(le.Uint16(b)))
		case 4:
			return float64(int32(le.Uint32(b)))
		default:
			return float64(int64(le.Uint64(b)))
		}
	default:
		switch f.size {
		case 1:
			return float64(b[0])
		case 2:
			return float64(le.Uint16(b))
		case 4:
			return float64(le.Uint32(b))
		default:
			return float64(le.Uint64(b))
		}
	}
}
