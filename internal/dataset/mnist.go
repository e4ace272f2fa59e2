package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drakos74/hybrid-digits/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801

	TrainImages = "train-images-idx3-ubyte"
	TrainLabels = "train-labels-idx1-ubyte"
	TestImages  = "t10k-images-idx3-ubyte"
	TestLabels  = "t10k-labels-idx1-ubyte"
)

// MNIST serves digits from the idx files of the MNIST dataset.
type MNIST struct {
	mutex sync.Mutex
	rng   *rand.Rand
	train []Item
	test  []Item
}

// LoadMNIST reads the four idx files from the given directory.
// Each file may also be gzipped with a .gz suffix.
func LoadMNIST(dir string, seed int64) (*MNIST, error) {
	train, err := readSet(dir, TrainImages, TrainLabels)
	if err != nil {
		return nil, err
	}
	test, err := readSet(dir, TestImages, TestLabels)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("dir", dir).
		Int("train", len(train)).
		Int("test", len(test)).
		Msg("loaded mnist")
	return &MNIST{
		rng:   rand.New(rand.NewSource(seed)),
		train: train,
		test:  test,
	}, nil
}

// Train returns n random training digits.
func (m *MNIST) Train(n int) ([]Item, error) {
	if n > len(m.train) {
		return nil, fmt.Errorf("requested %d items but only %d available", n, len(m.train))
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	items := make([]Item, n)
	for i, j := range m.rng.Perm(len(m.train))[:n] {
		items[i] = m.train[j]
	}
	return items, nil
}

// Test returns a random digit of the test set.
func (m *MNIST) Test() (Item, error) {
	if len(m.test) == 0 {
		return Item{}, fmt.Errorf("no test data")
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.test[m.rng.Intn(len(m.test))], nil
}

func readSet(dir, imagesFile, labelsFile string) ([]Item, error) {
	var images []model.Image
	if err := open(dir, imagesFile, func(r io.Reader) (err error) {
		images, err = ReadImages(r)
		return err
	}); err != nil {
		return nil, err
	}
	var labels []model.Label
	if err := open(dir, labelsFile, func(r io.Reader) (err error) {
		labels, err = ReadLabels(r)
		return err
	}); err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("found %d images and %d labels in %s", len(images), len(labels), dir)
	}
	items := make([]Item, len(images))
	for i := range images {
		items[i] = Item{Image: images[i], Label: labels[i]}
	}
	return items, nil
}

func open(dir, name string, read func(r io.Reader) error) error {
	for _, candidate := range []string{name, name + ".gz"} {
		p := filepath.Join(dir, candidate)
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		defer f.Close()
		var r io.Reader = bufio.NewReader(f)
		if strings.HasSuffix(p, ".gz") {
			gz, err := gzip.NewReader(r)
			if err != nil {
				return fmt.Errorf("could not decompress '%s': %w", p, err)
			}
			defer gz.Close()
			r = gz
		}
		if err := read(r); err != nil {
			return fmt.Errorf("could not read '%s': %w", p, err)
		}
		return nil
	}
	return fmt.Errorf("could not find '%s' in '%s'", name, dir)
}

// ReadImages decodes an idx3 image file into images with pixels scaled to [0,1].
func ReadImages(r io.Reader) ([]model.Image, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	if header[0] != imagesMagic {
		return nil, fmt.Errorf("unexpected magic number %x for images", header[0])
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if rows != model.ImageSide || cols != model.ImageSide {
		return nil, fmt.Errorf("images of %dx%d instead of %dx%d", rows, cols, model.ImageSide, model.ImageSide)
	}
	buf := make([]byte, model.ImageSize)
	images := make([]model.Image, count)
	for i := range images {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("could not read image %d: %w", i, err)
		}
		image := model.NewImage()
		for j, b := range buf {
			image[j] = float64(b) / 255
		}
		images[i] = image
	}
	return images, nil
}

// ReadLabels decodes an idx1 label file.
func ReadLabels(r io.Reader) ([]model.Label, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("could not read header: %w", err)
	}
	if header[0] != labelsMagic {
		return nil, fmt.Errorf("unexpected magic number %x for labels", header[0])
	}
	buf := make([]byte, header[1])
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("could not read labels: %w", err)
	}
	labels := make([]model.Label, len(buf))
	for i, b := range buf {
		l := model.Label(b)
		if !l.Valid() {
			return nil, fmt.Errorf("invalid label %d at %d", b, i)
		}
		labels[i] = l
	}
	return labels, nil
}
