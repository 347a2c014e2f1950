package tzdata

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"tz-search/pkg/tzsearch"
)

// 文档注释：紧凑二进制数据集（TZS1）
// 背景：GeoJSON 体积大且解析慢；随程序分发的数据集使用定点整数与 snappy 压缩，加载只需一次顺序扫描。
// 格式：4 字节魔数 "TZS1"，其后为 snappy framed 流，流内大端序：
//
//	u32 zoneCount
//	  u16 nameLen, name
//	  u32 polyCount
//	    u32 ringCount（>=1，第一环为外环）
//	      u32 vertexCount, vertexCount × (i32 lat·1e7, i32 lon·1e7)
//
// 约束：每个计数都与剩余字节数核对，末尾多余字节视为损坏；任何不一致返回 ErrDataset。
var binaryMagic = []byte("TZS1")

const coordScale = 1e7

// EncodeBinary 写出 TZS1 数据集；坐标按 1e-7 度取整
func EncodeBinary(w io.Writer, zones []tzsearch.Zone) error {
	if _, err := w.Write(binaryMagic); err != nil {
		return errors.Wrap(err, "write magic")
	}
	sw := snappy.NewBufferedWriter(w)
	bw := bufio.NewWriter(sw)
	put := func(v interface{}) error { return binary.Write(bw, binary.BigEndian, v) }
	if err := put(uint32(len(zones))); err != nil {
		return err
	}
	for _, z := range zones {
		if len(z.Name) > math.MaxUint16 {
			return errors.Newf("zone name too long: %d bytes", len(z.Name))
		}
		if err := put(uint16(len(z.Name))); err != nil {
			return err
		}
		if _, err := bw.WriteString(z.Name); err != nil {
			return err
		}
		if err := put(uint32(len(z.Polygons))); err != nil {
			return err
		}
		for _, p := range z.Polygons {
			if err := put(uint32(1 + len(p.Holes))); err != nil {
				return err
			}
			if err := writeRing(bw, p.Outer); err != nil {
				return err
			}
			for _, h := range p.Holes {
				if err := writeRing(bw, h); err != nil {
					return err
				}
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush")
	}
	return errors.Wrap(sw.Close(), "close snappy stream")
}

func writeRing(w io.Writer, r tzsearch.Ring) error {
	buf := make([]byte, 4+8*len(r))
	binary.BigEndian.PutUint32(buf, uint32(len(r)))
	off := 4
	for _, pt := range r {
		binary.BigEndian.PutUint32(buf[off:], uint32(toFixed(pt.Lat)))
		binary.BigEndian.PutUint32(buf[off+4:], uint32(toFixed(pt.Lon)))
		off += 8
	}
	_, err := w.Write(buf)
	return err
}

func toFixed(v float64) int32 { return int32(math.Round(v * coordScale)) }

// DecodeBinary 解析 TZS1 数据集
func DecodeBinary(r io.Reader) ([]tzsearch.Zone, error) {
	head := make([]byte, len(binaryMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, tzsearch.DatasetErrorf("read magic: %v", err)
	}
	if !bytes.Equal(head, binaryMagic) {
		return nil, tzsearch.DatasetErrorf("bad magic %q", head)
	}
	data, err := io.ReadAll(snappy.NewReader(r))
	if err != nil {
		return nil, tzsearch.DatasetErrorf("decompress: %v", err)
	}
	d := decoder{data: data}
	n := d.u32("zone count")
	// 每个时区至少占 6 字节，先核对计数再分配
	if d.err == nil && uint64(n)*6 > uint64(d.remaining()) {
		d.fail("zone count %d exceeds payload", n)
	}
	var zones []tzsearch.Zone
	if d.err == nil {
		zones = make([]tzsearch.Zone, 0, n)
	}
	for i := uint32(0); i < n && d.err == nil; i++ {
		var z tzsearch.Zone
		z.Name = d.str("zone name")
		np := d.u32("polygon count")
		if d.err == nil && uint64(np)*8 > uint64(d.remaining()) {
			d.fail("zone %q polygon count %d exceeds payload", z.Name, np)
		}
		for j := uint32(0); j < np && d.err == nil; j++ {
			nr := d.u32("ring count")
			if d.err == nil && nr == 0 {
				d.fail("zone %q polygon %d has no rings", z.Name, j)
			}
			if d.err == nil && uint64(nr)*4 > uint64(d.remaining()) {
				d.fail("zone %q ring count %d exceeds payload", z.Name, nr)
			}
			var p tzsearch.Polygon
			for k := uint32(0); k < nr && d.err == nil; k++ {
				ring := d.ring()
				if k == 0 {
					p.Outer = ring
				} else {
					p.Holes = append(p.Holes, ring)
				}
			}
			z.Polygons = append(z.Polygons, p)
		}
		zones = append(zones, z)
	}
	if d.err == nil && d.remaining() != 0 {
		d.fail("%d trailing bytes", d.remaining())
	}
	if d.err != nil {
		return nil, d.err
	}
	return zones, nil
}

// decoder：带越界检查的顺序读取；首个错误之后的读取全部为空操作
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) remaining() int { return len(d.data) - d.off }

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = tzsearch.DatasetErrorf(format, args...)
	}
}

func (d *decoder) take(n int, what string) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || d.off+n > len(d.data) {
		d.fail("truncated at offset %d reading %s", d.off, what)
		return nil
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) u32(what string) uint32 {
	b := d.take(4, what)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (d *decoder) str(what string) string {
	b := d.take(2, what)
	if b == nil {
		return ""
	}
	s := d.take(int(binary.BigEndian.Uint16(b)), what)
	return string(s)
}

func (d *decoder) ring() tzsearch.Ring {
	n := d.u32("vertex count")
	if d.err != nil {
		return nil
	}
	if uint64(n)*8 > uint64(d.remaining()) {
		d.fail("vertex count %d exceeds payload", n)
		return nil
	}
	b := d.take(int(n)*8, "vertices")
	r := make(tzsearch.Ring, n)
	for i := range r {
		lat := int32(binary.BigEndian.Uint32(b[i*8:]))
		lon := int32(binary.BigEndian.Uint32(b[i*8+4:]))
		r[i] = tzsearch.Point{Lat: float64(lat) / coordScale, Lon: float64(lon) / coordScale}
	}
	return r
}
