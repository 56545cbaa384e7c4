package ir

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"isle/internal/island"
	"isle/internal/token"
	"isle/internal/value"
)

var magic = [4]byte{'I', 'S', 'C', '1'}

// Codec selects the compression of a serialised code body.
type Codec byte

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecXZ
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecXZ:
		return "xz"
	default:
		return fmt.Sprintf("Codec(%d)", byte(c))
	}
}

// ParseCodec maps a codec name to its Codec. The empty name means none.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "xz":
		return CodecXZ, nil
	}
	return 0, fmt.Errorf("unknown codec %q", name)
}

// maxLength bounds every length prefix read back.
const maxLength = 1 << 30

var errNotSerialisable = errors.New("value cannot be serialised")

func WriteCodeToFile(filename string, code *value.Code, codec Codec, reg *island.Registry) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteCode(f, code, codec, reg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func ReadCodeFromFile(filename string, reg *island.Registry) (*value.Code, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCode(f, reg)
}

// WriteCode writes code to w: the magic, the codec byte, then the
// little-endian body compressed with codec. reg names the roots of rooted
// path constants.
func WriteCode(w io.Writer, code *value.Code, codec Codec, reg *island.Registry) error {
	if reg == nil {
		reg = island.DefaultRegistry()
	}
	enc := &encoder{reg: reg}
	enc.code(code)
	if enc.err != nil {
		return enc.err
	}

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(codec)}); err != nil {
		return err
	}

	switch codec {
	case CodecNone:
		_, err := w.Write(enc.buf.Bytes())
		return err
	case CodecLZ4:
		zw := lz4.NewWriter(w)
		if _, err := zw.Write(enc.buf.Bytes()); err != nil {
			return err
		}
		return zw.Close()
	case CodecXZ:
		zw, err := xz.NewWriter(w)
		if err != nil {
			return err
		}
		if _, err := zw.Write(enc.buf.Bytes()); err != nil {
			return err
		}
		return zw.Close()
	}
	return fmt.Errorf("unknown codec %d", byte(codec))
}

// ReadCode reads a code written by WriteCode. Rooted paths are resolved
// again through reg.
func ReadCode(r io.Reader, reg *island.Registry) (*value.Code, error) {
	if reg == nil {
		reg = island.DefaultRegistry()
	}
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("bad magic %q", hdr[:4])
	}

	var body io.Reader
	switch Codec(hdr[4]) {
	case CodecNone:
		body = r
	case CodecLZ4:
		body = lz4.NewReader(r)
	case CodecXZ:
		zr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		body = zr
	default:
		return nil, fmt.Errorf("unknown codec %d", hdr[4])
	}

	dec := &decoder{r: bufio.NewReader(body), reg: reg}
	code := dec.code()
	if dec.err != nil {
		return nil, dec.err
	}
	return code, nil
}

type encoder struct {
	buf bytes.Buffer
	reg *island.Registry
	err error
}

func (e *encoder) u8(b byte) { e.buf.WriteByte(b) }

func (e *encoder) u32(n uint32) {
	e.buf.Write(binary.LittleEndian.AppendUint32(nil, n))
}

func (e *encoder) u64(n uint64) {
	e.buf.Write(binary.LittleEndian.AppendUint64(nil, n))
}

func (e *encoder) blob(b []byte) {
	e.u32(uint32(len(b)))
	e.buf.Write(b)
}

func (e *encoder) str(s string) {
	e.u32(uint32(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) strs(ss []string) {
	e.u32(uint32(len(ss)))
	for _, s := range ss {
		e.str(s)
	}
}

func (e *encoder) code(c *value.Code) {
	if c.Path() != nil {
		e.u8(1)
		e.path(c.Path())
	} else {
		e.u8(0)
	}
	if p, ok := c.Parameter(); ok {
		e.u8(1)
		e.str(p)
	} else {
		e.u8(0)
	}
	e.blob(c.Bytes())

	values := c.Values()
	e.u32(uint32(len(values)))
	for _, v := range values {
		e.value(v)
	}

	locs := c.Locations()
	e.u32(uint32(len(locs)))
	for _, l := range locs {
		e.u32(uint32(l.At))
		e.u32(uint32(l.Span.Start))
		e.u32(uint32(l.Span.End))
	}
}

func (e *encoder) path(p *value.Path) {
	if p.IsRootless() {
		e.u8(0)
		e.strs(p.Subpath())
		return
	}
	typ, arg := e.reg.Key(p.Root())
	e.u8(1)
	e.str(typ)
	e.str(arg)
	e.strs(p.Subpath())
}

func (e *encoder) value(v value.Value) {
	if e.err != nil {
		return
	}
	e.u8(byte(v.Kind))
	switch v.Kind {
	case value.KindNope:
	case value.KindBoolean:
		if v.Bool {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case value.KindInteger:
		e.str(v.Int.String())
	case value.KindFloat:
		e.u64(math.Float64bits(v.Float))
	case value.KindRune:
		e.u32(uint32(v.Rune))
	case value.KindString, value.KindBind, value.KindReference:
		e.str(v.Str)
	case value.KindBytes:
		e.blob(v.Bytes)
	case value.KindList:
		items := v.List.Slice()
		e.u32(uint32(len(items)))
		for _, it := range items {
			e.value(it)
		}
	case value.KindCons:
		e.value(v.Cons.Fst)
		e.value(v.Cons.Snd)
	case value.KindAttributes:
		e.u32(uint32(v.Attrs.Len()))
		v.Attrs.Each(func(k string, m value.Value) bool {
			e.str(k)
			e.value(m)
			return e.err == nil
		})
	case value.KindPath:
		e.path(v.Path)
	case value.KindBlueprint:
		if v.Scopes != nil {
			e.err = fmt.Errorf("%w: closure", errNotSerialisable)
			return
		}
		e.code(v.Code)
	default:
		e.err = fmt.Errorf("%w: %s", errNotSerialisable, v.Kind)
	}
}

type decoder struct {
	r   *bufio.Reader
	reg *island.Registry
	err error
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) read(n int) []byte {
	if d.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(d.r, b); err != nil {
		d.err = fmt.Errorf("read code: %w", err)
		return nil
	}
	return b
}

func (d *decoder) u8() byte {
	b := d.read(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u32() uint32 {
	b := d.read(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.read(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) length() int {
	n := d.u32()
	if n > maxLength {
		d.fail("length %d too large", n)
		return 0
	}
	return int(n)
}

func (d *decoder) blob() []byte {
	n := d.length()
	if d.err != nil {
		return nil
	}
	return d.read(n)
}

func (d *decoder) str() string { return string(d.blob()) }

func (d *decoder) strs() []string {
	n := d.length()
	var out []string
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) code() *value.Code {
	var path *value.Path
	if d.u8() == 1 {
		path = d.path()
	}
	var param *string
	if d.u8() == 1 {
		p := d.str()
		param = &p
	}
	code := d.blob()

	n := d.length()
	var values []value.Value
	for i := 0; i < n && d.err == nil; i++ {
		values = append(values, d.value())
	}

	n = d.length()
	var locs []value.LocationEntry
	for i := 0; i < n && d.err == nil; i++ {
		at := d.u32()
		start := d.u32()
		end := d.u32()
		locs = append(locs, value.LocationEntry{
			At:   value.ByteIndex(at),
			Span: token.Span{Start: int(start), End: int(end)},
		})
	}
	if d.err != nil {
		return nil
	}
	return value.RawCode(path, param, code, values, locs)
}

func (d *decoder) path() *value.Path {
	switch d.u8() {
	case 0:
		return value.RootlessPath(d.strs()...)
	case 1:
		typ, arg := d.str(), d.str()
		sub := d.strs()
		if d.err != nil {
			return nil
		}
		p, err := d.reg.Path(typ, arg)
		if err != nil {
			d.fail("resolve <%s:%s>: %w", typ, arg, err)
			return nil
		}
		return p.WithSubpath(value.Subpath(sub))
	default:
		d.fail("bad path tag")
		return nil
	}
}

func (d *decoder) value() value.Value {
	kind := value.Kind(d.u8())
	if d.err != nil {
		return value.Value{}
	}
	switch kind {
	case value.KindNope:
		return value.Nope
	case value.KindBoolean:
		return value.Bool(d.u8() == 1)
	case value.KindInteger:
		s := d.str()
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			d.fail("bad integer %q", s)
			return value.Value{}
		}
		return value.IntFromBig(n)
	case value.KindFloat:
		return value.Float(math.Float64frombits(d.u64()))
	case value.KindRune:
		return value.RuneOf(rune(d.u32()))
	case value.KindString:
		return value.Str(d.str())
	case value.KindBind:
		return value.BindOf(d.str())
	case value.KindReference:
		return value.ReferenceOf(d.str())
	case value.KindBytes:
		return value.BytesOf(d.blob())
	case value.KindList:
		n := d.length()
		items := make([]value.Value, 0, min(n, 1024))
		for i := 0; i < n && d.err == nil; i++ {
			items = append(items, d.value())
		}
		return value.ListOf(items...)
	case value.KindCons:
		fst := d.value()
		return value.NewCons(fst, d.value())
	case value.KindAttributes:
		n := d.length()
		attrs := value.Attributes{}
		for i := 0; i < n && d.err == nil; i++ {
			k := d.str()
			attrs = attrs.Insert(k, d.value())
		}
		return value.AttributesValue(attrs)
	case value.KindPath:
		if p := d.path(); p != nil {
			return value.PathOf(p)
		}
		return value.Value{}
	case value.KindBlueprint:
		if c := d.code(); c != nil {
			return value.BlueprintOf(c)
		}
		return value.Value{}
	}
	d.fail("unexpected value kind %s", kind)
	return value.Value{}
}
