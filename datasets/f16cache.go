package datasets

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/x448/float16"
	"gorgonia.org/tensor"
)

const (
	// CacheExt Extension of half-precision cache files
	CacheExt = ".f16"

	cacheMagic   = "TGSC"
	cacheVersion = uint16(1)

	// maxSampleValues Upper bound of C*H*W accepted from cache header
	maxSampleValues = 1 << 24
	cachePrealloc   = 1024
)

// cacheHeader Layout (little endian): magic[4] | version uint16 | count uint32 | C uint32 | H uint32 | W uint32
type cacheHeader struct {
	Version  uint16
	Count    uint32
	Channels uint32
	Height   uint32
	Width    uint32
}

// WriteCache Writes samples of the same (C, H, W) shape as float16 values
func WriteCache(w io.Writer, samples []*tensor.Dense) error {
	if len(samples) == 0 {
		return fmt.Errorf("Nothing to write: no samples")
	}
	shp := samples[0].Shape()
	if len(shp) != 3 {
		return fmt.Errorf("Samples must be (C, H, W), but got shape %v", shp)
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(cacheMagic); err != nil {
		return errors.Wrap(err, "Can't write magic")
	}
	header := cacheHeader{
		Version:  cacheVersion,
		Count:    uint32(len(samples)),
		Channels: uint32(shp[0]),
		Height:   uint32(shp[1]),
		Width:    uint32(shp[2]),
	}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	buf := make([]byte, 2)
	for i, sample := range samples {
		if !sample.Shape().Eq(shp) {
			return fmt.Errorf("Sample #%d has shape %v, but sample #0 has shape %v", i, sample.Shape(), shp)
		}
		data, ok := sample.Data().([]float64)
		if !ok {
			return fmt.Errorf("Sample #%d must hold float64 values, but got %v", i, sample.Dtype())
		}
		for _, v := range data {
			binary.LittleEndian.PutUint16(buf, float16.Fromfloat32(float32(v)).Bits())
			if _, err := bw.Write(buf); err != nil {
				return errors.Wrapf(err, "Can't write sample #%d", i)
			}
		}
	}
	return errors.Wrap(bw.Flush(), "Can't flush cache")
}

// ReadCache Reads samples written by WriteCache
func ReadCache(r io.Reader) ([]*tensor.Dense, error) {
	return readCache(r, -1)
}

// readCache Reads cache. Non-negative size is expected length of whole stream
func readCache(r io.Reader, size int64) ([]*tensor.Dense, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, errors.Wrap(err, "Can't read magic")
	}
	if string(magic) != cacheMagic {
		return nil, fmt.Errorf("Bad magic '%s': not a spectrogram cache", magic)
	}
	header := cacheHeader{}
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "Can't read header")
	}
	if err := header.validate(); err != nil {
		return nil, err
	}
	sampleSize := int(header.Channels) * int(header.Height) * int(header.Width)
	if size >= 0 {
		expected := int64(len(cacheMagic)+binary.Size(header)) + int64(header.Count)*int64(2*sampleSize)
		if size != expected {
			return nil, fmt.Errorf("Cache of %d samples %dx%dx%d must take %d bytes, but got %d", header.Count, header.Channels, header.Height, header.Width, expected, size)
		}
	}
	sampleShape := tensor.Shape{int(header.Channels), int(header.Height), int(header.Width)}
	raw := make([]byte, 2*sampleSize)
	// Count is not trusted for preallocation
	samples := make([]*tensor.Dense, 0, minInt(int(header.Count), cachePrealloc))
	for i := 0; i < int(header.Count); i++ {
		if _, err := io.ReadFull(br, raw); err != nil {
			return nil, errors.Wrapf(err, "Can't read sample #%d of %d", i, header.Count)
		}
		backing := make([]float64, sampleSize)
		for j := range backing {
			backing[j] = float64(float16.Frombits(binary.LittleEndian.Uint16(raw[2*j:])).Float32())
		}
		samples = append(samples, tensor.New(tensor.WithShape(sampleShape.Clone()...), tensor.WithBacking(backing)))
	}
	return samples, nil
}

func (h cacheHeader) validate() error {
	if h.Version != cacheVersion {
		return fmt.Errorf("Cache version %d is not supported", h.Version)
	}
	if h.Channels == 0 || h.Height == 0 || h.Width == 0 {
		return fmt.Errorf("Cache sample shape %dx%dx%d has zero dimension", h.Channels, h.Height, h.Width)
	}
	if uint64(h.Channels)*uint64(h.Height)*uint64(h.Width) > maxSampleValues {
		return fmt.Errorf("Cache sample shape %dx%dx%d exceeds %d values", h.Channels, h.Height, h.Width, maxSampleValues)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// WriteCacheFile Creates (or truncates) file and writes samples into it
func WriteCacheFile(fname string, samples []*tensor.Dense) error {
	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrapf(err, "Can't create cache file '%s'", fname)
	}
	if err := WriteCache(f, samples); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "Can't close cache file")
}

// ReadCacheFile Reads samples from file written by WriteCacheFile
func ReadCacheFile(fname string) ([]*tensor.Dense, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open cache file '%s'", fname)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "Can't stat cache file '%s'", fname)
	}
	return readCache(f, info.Size())
}
