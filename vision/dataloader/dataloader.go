// Package dataloader batches image/mask pairs into training tensors,
// decoding and letterboxing samples with a small worker pool.
package dataloader

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/tsawler/go-marker/tensor"
	"github.com/tsawler/go-marker/vision/preprocessing"
)

// Dataset supplies image/mask path pairs by index.
type Dataset interface {
	Len() int
	GetItem(i int) (imagePath, maskPath string, err error)
}

// Config holds configuration for creating a DataLoader
type Config struct {
	BatchSize  int
	Shuffle    bool
	Width      int // Canvas width every sample is letterboxed to
	Height     int // Canvas height every sample is letterboxed to
	NumWorkers int // Parallel decode workers; 0 means NumCPU
	Seed       int64
}

// DefaultConfig returns a reasonable default configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:  4,
		Shuffle:    true,
		Width:      512,
		Height:     512,
		NumWorkers: 0,
	}
}

// DataLoader iterates a dataset in batches of letterboxed tensors.
// Images come out as [batch, 3, height, width], masks as
// [batch, 1, height, width], both with values in [0, 1].
type DataLoader struct {
	dataset Dataset
	config  Config

	mu       sync.Mutex
	rng      *rand.Rand
	indices  []int
	position int
}

// NewDataLoader creates a loader over dataset with the given config.
func NewDataLoader(dataset Dataset, config Config) (*DataLoader, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if config.Width <= 0 || config.Height <= 0 {
		return nil, fmt.Errorf("canvas size must be positive, got %dx%d", config.Width, config.Height)
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}

	dl := &DataLoader{
		dataset: dataset,
		config:  config,
		rng:     rand.New(rand.NewSource(config.Seed)),
		indices: make([]int, dataset.Len()),
	}
	for i := range dl.indices {
		dl.indices[i] = i
	}
	if config.Shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}

	return dl, nil
}

// NextBatch returns the next batch of images and masks. It returns
// (nil, nil, nil) once the dataset is exhausted; Reset starts a new
// pass.
func (dl *DataLoader) NextBatch() (*tensor.Tensor, *tensor.Tensor, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.position >= len(dl.indices) {
		return nil, nil, nil
	}

	end := dl.position + dl.config.BatchSize
	if end > len(dl.indices) {
		end = len(dl.indices)
	}
	batch := dl.indices[dl.position:end]
	dl.position = end

	return dl.loadBatch(batch)
}

func (dl *DataLoader) loadBatch(batch []int) (*tensor.Tensor, *tensor.Tensor, error) {
	n := len(batch)
	w, h := dl.config.Width, dl.config.Height

	images, err := tensor.Zeros([]int{n, 3, h, w})
	if err != nil {
		return nil, nil, err
	}
	masks, err := tensor.Zeros([]int{n, 1, h, w})
	if err != nil {
		return nil, nil, err
	}

	workers := dl.config.NumWorkers
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slot := range jobs {
				errs[slot] = dl.loadSample(batch[slot], slot, images, masks)
			}
		}()
	}
	for slot := 0; slot < n; slot++ {
		jobs <- slot
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}

	return images, masks, nil
}

// loadSample decodes one pair, letterboxes both halves onto the
// configured canvas and copies them into the batch tensors at slot.
func (dl *DataLoader) loadSample(index, slot int, images, masks *tensor.Tensor) error {
	imagePath, maskPath, err := dl.dataset.GetItem(index)
	if err != nil {
		return err
	}

	img, err := preprocessing.LoadImageTensor(imagePath, 3)
	if err != nil {
		return fmt.Errorf("failed to load sample %d: %v", index, err)
	}
	fitImg, _, err := preprocessing.FitTensor(img, dl.config.Width, dl.config.Height)
	if err != nil {
		return fmt.Errorf("failed to fit sample %d: %v", index, err)
	}

	mask, err := preprocessing.LoadImageTensor(maskPath, 1)
	if err != nil {
		return fmt.Errorf("failed to load mask %d: %v", index, err)
	}
	fitMask, _, err := preprocessing.FitTensor(mask, dl.config.Width, dl.config.Height)
	if err != nil {
		return fmt.Errorf("failed to fit mask %d: %v", index, err)
	}

	imgSize := 3 * dl.config.Height * dl.config.Width
	maskSize := dl.config.Height * dl.config.Width
	copy(images.Data[slot*imgSize:(slot+1)*imgSize], fitImg.Data)
	copy(masks.Data[slot*maskSize:(slot+1)*maskSize], fitMask.Data)
	return nil
}

// Reset rewinds the loader and reshuffles if configured to.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.config.Shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Len returns the number of batches in one full pass.
func (dl *DataLoader) Len() int {
	return (len(dl.indices) + dl.config.BatchSize - 1) / dl.config.BatchSize
}
