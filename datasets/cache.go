package datasets

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nlpodyssey/gopickle/pickle"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// LoadCache Loads cached samples. Format is chosen by file extension:
//
// .pt, .pth - file written by torch.save (list of tensors or single stacked tensor)
// .pkl, .pickle - plain pickle with nested lists or torch tensors
// .f16 - half-precision cache written by WriteCache
//
// Each returned sample is (C, H, W). Two-dimensional samples get leading channel axis.
//
func LoadCache(path string) ([]*tensor.Dense, error) {
	var (
		samples []*tensor.Dense
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pt", ".pth":
		samples, err = loadTorch(path)
	case ".pkl", ".pickle":
		samples, err = loadPickle(path)
	case CacheExt:
		samples, err = ReadCacheFile(path)
	default:
		return nil, fmt.Errorf("Unknown cache format of file '%s'", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load cache '%s'", path)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("Cache '%s' is empty", path)
	}
	shp := samples[0].Shape()
	for i := range samples {
		if !samples[i].Shape().Eq(shp) {
			return nil, fmt.Errorf("Cache '%s': sample #%d has shape %v, but sample #0 has shape %v", path, i, samples[i].Shape(), shp)
		}
	}
	return samples, nil
}

func loadTorch(path string) ([]*tensor.Dense, error) {
	obj, err := pytorch.Load(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't unpickle torch file")
	}
	return samplesFromObject(obj)
}

func loadPickle(path string) ([]*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't open '%s'", path)
	}
	defer f.Close()
	u := pickle.NewUnpickler(bufio.NewReader(f))
	u.FindClass = findTorchClass
	obj, err := u.Load()
	if err != nil {
		return nil, errors.Wrap(err, "Can't unpickle file")
	}
	return samplesFromObject(obj)
}

// findTorchClass Resolves globals which plain pickle of torch tensors refers to.
// Unknown globals stay generic classes
func findTorchClass(module, name string) (interface{}, error) {
	switch module + "." + name {
	case "torch._utils._rebuild_tensor_v2":
		return &pytorch.RebuildTensorV2{}, nil
	case "torch.storage._load_from_bytes":
		return &storageFromBytes{}, nil
	case "collections.OrderedDict":
		return &types.OrderedDictClass{}, nil
	case "_codecs.encode":
		return &latin1Encode{}, nil
	default:
		return types.NewGenericClass(module, name), nil
	}
}

// storageFromBytes Pickled storage is a complete legacy torch.save stream
type storageFromBytes struct{}

func (*storageFromBytes) Call(args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("_load_from_bytes expects 1 argument, but got %d", len(args))
	}
	var data []byte
	switch v := args[0].(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("_load_from_bytes expects bytes, but got %T", args[0])
	}
	// torch loader reads from named file only
	tmp, err := os.CreateTemp("", "techno-gan-storage-*.pt")
	if err != nil {
		return nil, errors.Wrap(err, "Can't create temporary storage file")
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.Wrap(err, "Can't write temporary storage file")
	}
	if err = tmp.Close(); err != nil {
		return nil, errors.Wrap(err, "Can't close temporary storage file")
	}
	storage, err := pytorch.Load(tmp.Name())
	if err != nil {
		return nil, errors.Wrap(err, "Can't load pickled storage")
	}
	return storage, nil
}

// latin1Encode Protocol 2 pickles store bytes as _codecs.encode(str, 'latin1')
type latin1Encode struct{}

func (*latin1Encode) Call(args ...interface{}) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("_codecs.encode expects string argument")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("_codecs.encode expects string, but got %T", args[0])
	}
	data := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return nil, fmt.Errorf("Rune %q can't be encoded as latin1", r)
		}
		data = append(data, byte(r))
	}
	return data, nil
}

// samplesFromObject Converts unpickled object into list of samples
func samplesFromObject(obj interface{}) ([]*tensor.Dense, error) {
	switch v := obj.(type) {
	case *pytorch.Tensor:
		stacked, err := denseFromTorch(v)
		if err != nil {
			return nil, err
		}
		return splitStacked(stacked)
	default:
		items, ok := asSlice(obj)
		if !ok {
			return nil, fmt.Errorf("Unsupported top-level object %T: expected list or tensor", obj)
		}
		samples := make([]*tensor.Dense, 0, len(items))
		for i, item := range items {
			var (
				sample *tensor.Dense
				err    error
			)
			if t, isTensor := item.(*pytorch.Tensor); isTensor {
				sample, err = denseFromTorch(t)
			} else {
				sample, err = denseFromNested(item)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "Bad sample #%d", i)
			}
			sample, err = withChannelAxis(sample)
			if err != nil {
				return nil, errors.Wrapf(err, "Bad sample #%d", i)
			}
			samples = append(samples, sample)
		}
		return samples, nil
	}
}

// splitStacked Splits (N, C, H, W) or (N, H, W) tensor into N samples
func splitStacked(stacked *tensor.Dense) ([]*tensor.Dense, error) {
	shp := stacked.Shape()
	if len(shp) != 3 && len(shp) != 4 {
		return nil, fmt.Errorf("Stacked tensor must be (N, C, H, W) or (N, H, W), but got shape %v", shp)
	}
	data := stacked.Data().([]float64)
	sampleShape := shp[1:].Clone()
	sampleSize := sampleShape.TotalSize()
	samples := make([]*tensor.Dense, shp[0])
	for i := range samples {
		backing := make([]float64, sampleSize)
		copy(backing, data[i*sampleSize:(i+1)*sampleSize])
		sample, err := withChannelAxis(tensor.New(tensor.WithShape(sampleShape...), tensor.WithBacking(backing)))
		if err != nil {
			return nil, err
		}
		samples[i] = sample
	}
	return samples, nil
}

func withChannelAxis(sample *tensor.Dense) (*tensor.Dense, error) {
	shp := sample.Shape()
	switch len(shp) {
	case 2:
		if err := sample.Reshape(1, shp[0], shp[1]); err != nil {
			return nil, errors.Wrap(err, "Can't add channel axis")
		}
		return sample, nil
	case 3:
		return sample, nil
	default:
		return nil, fmt.Errorf("Sample must be (H, W) or (C, H, W), but got shape %v", shp)
	}
}

// denseFromTorch Copies contiguous torch tensor into float64 dense
func denseFromTorch(t *pytorch.Tensor) (*tensor.Dense, error) {
	if len(t.Stride) != len(t.Size) {
		return nil, fmt.Errorf("Tensor has size %v, but stride %v", t.Size, t.Stride)
	}
	size := 1
	for _, s := range t.Size {
		size *= s
	}
	expectedStride := 1
	for i := len(t.Size) - 1; i >= 0; i-- {
		if t.Size[i] > 1 && t.Stride[i] != expectedStride {
			return nil, fmt.Errorf("Only contiguous tensors are supported, but got size %v and stride %v", t.Size, t.Stride)
		}
		expectedStride *= t.Size[i]
	}
	backing := make([]float64, size)
	from, to := t.StorageOffset, t.StorageOffset+size
	switch src := t.Source.(type) {
	case *pytorch.FloatStorage:
		if to > len(src.Data) {
			return nil, fmt.Errorf("Storage has %d values, but tensor needs [%d; %d)", len(src.Data), from, to)
		}
		for i, v := range src.Data[from:to] {
			backing[i] = float64(v)
		}
	case *pytorch.HalfStorage:
		if to > len(src.Data) {
			return nil, fmt.Errorf("Storage has %d values, but tensor needs [%d; %d)", len(src.Data), from, to)
		}
		for i, v := range src.Data[from:to] {
			backing[i] = float64(v)
		}
	case *pytorch.DoubleStorage:
		if to > len(src.Data) {
			return nil, fmt.Errorf("Storage has %d values, but tensor needs [%d; %d)", len(src.Data), from, to)
		}
		copy(backing, src.Data[from:to])
	default:
		return nil, fmt.Errorf("Unsupported torch storage %T: expected float, half or double", t.Source)
	}
	shp := make([]int, len(t.Size))
	copy(shp, t.Size)
	return tensor.New(tensor.WithShape(shp...), tensor.WithBacking(backing)), nil
}

// denseFromNested Converts nested lists of numbers into dense tensor
func denseFromNested(obj interface{}) (*tensor.Dense, error) {
	shp := []int{}
	level := obj
	for {
		items, ok := asSlice(level)
		if !ok {
			break
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("Nested list has empty dimension")
		}
		shp = append(shp, len(items))
		level = items[0]
	}
	if len(shp) == 0 {
		return nil, fmt.Errorf("Expected nested list, but got %T", obj)
	}
	backing := make([]float64, 0, tensor.Shape(shp).TotalSize())
	var walk func(v interface{}, depth int) error
	walk = func(v interface{}, depth int) error {
		if depth == len(shp) {
			f, err := toFloat(v)
			if err != nil {
				return err
			}
			backing = append(backing, f)
			return nil
		}
		items, ok := asSlice(v)
		if !ok || len(items) != shp[depth] {
			return fmt.Errorf("Nested list is ragged at depth %d", depth)
		}
		for _, item := range items {
			if err := walk(item, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(obj, 0); err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithShape(shp...), tensor.WithBacking(backing)), nil
}

func asSlice(obj interface{}) ([]interface{}, bool) {
	switch v := obj.(type) {
	case *types.List:
		return []interface{}(*v), true
	case types.List:
		return []interface{}(v), true
	case *types.Tuple:
		return []interface{}(*v), true
	case types.Tuple:
		return []interface{}(v), true
	case []interface{}:
		return v, true
	default:
		return nil, false
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("Expected number, but got %T", v)
	}
}
