// Package dataset discovers training samples on disk and pairs each
// image with its ground-truth mask by filename convention.
package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsawler/go-marker/tensor"
	"github.com/tsawler/go-marker/vision/preprocessing"
)

// SortMode controls the order entries are returned in.
type SortMode string

const (
	// SortByName orders entries by sample identifier, ascending.
	SortByName SortMode = "name"
	// SortByDate orders entries by image modification time, newest first.
	SortByDate SortMode = "date"
	// SortBySize orders entries by image file size, largest first.
	SortBySize SortMode = "size"
)

// Entry is one image/mask pair.
type Entry struct {
	ID        string
	ImagePath string
	MaskPath  string
}

// PairDataset scans a flat directory for files named
// "a-b-c-d-image.ext" and "a-b-c-d-mask.ext" and pairs them by the
// shared "a-b-c-d" identifier. Files that do not follow the convention,
// and identifiers missing either role, are dropped.
type PairDataset struct {
	dir     string
	entries []Entry
}

// pairFiles holds the two roles found for an identifier during the scan.
type pairFiles struct {
	imagePath string
	maskPath  string
	modTime   int64
	size      int64
}

// NewPairDataset scans dir (non-recursively) and returns the paired
// samples found there, ordered by sortMode.
func NewPairDataset(dir string, sortMode SortMode) (*PairDataset, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory %s: %v", dir, err)
	}

	pairs := make(map[string]*pairFiles)
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}

		id, role, ok := parseName(de.Name())
		if !ok {
			continue
		}

		pair := pairs[id]
		if pair == nil {
			pair = &pairFiles{}
			pairs[id] = pair
		}

		path := filepath.Join(dir, de.Name())
		switch role {
		case "image":
			pair.imagePath = path
			if info, err := statEntry(de); err == nil {
				pair.modTime = info.ModTime().UnixNano()
				pair.size = info.Size()
			}
		case "mask":
			pair.maskPath = path
		}
	}

	// Identifiers missing either role are dropped only after the whole
	// directory has been seen, so listing order cannot split a pair.
	type sortable struct {
		entry   Entry
		modTime int64
		size    int64
	}
	samples := make([]sortable, 0, len(pairs))
	for id, pair := range pairs {
		if pair.imagePath == "" || pair.maskPath == "" {
			continue
		}
		samples = append(samples, sortable{
			entry:   Entry{ID: id, ImagePath: pair.imagePath, MaskPath: pair.maskPath},
			modTime: pair.modTime,
			size:    pair.size,
		})
	}

	switch sortMode {
	case SortByName, "":
		sort.Slice(samples, func(i, j int) bool { return samples[i].entry.ID < samples[j].entry.ID })
	case SortByDate:
		sort.Slice(samples, func(i, j int) bool { return samples[i].modTime > samples[j].modTime })
	case SortBySize:
		sort.Slice(samples, func(i, j int) bool { return samples[i].size > samples[j].size })
	default:
		return nil, fmt.Errorf("unknown sort mode %q", sortMode)
	}

	entries := make([]Entry, len(samples))
	for i, s := range samples {
		entries[i] = s.entry
	}

	return &PairDataset{dir: dir, entries: entries}, nil
}

// parseName splits a filename into its sample identifier and role. The
// extension is removed first; the remaining base must have exactly five
// hyphen-separated segments, the last naming the role.
func parseName(name string) (id, role string, ok bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(base, "-")
	if len(parts) != 5 {
		return "", "", false
	}
	role = parts[4]
	if role != "image" && role != "mask" {
		return "", "", false
	}
	return strings.Join(parts[:4], "-"), role, true
}

func statEntry(de fs.DirEntry) (fs.FileInfo, error) {
	return de.Info()
}

// Len returns the number of paired samples.
func (d *PairDataset) Len() int {
	return len(d.entries)
}

// GetItem returns the image and mask paths for sample i.
func (d *PairDataset) GetItem(i int) (imagePath, maskPath string, err error) {
	if i < 0 || i >= len(d.entries) {
		return "", "", fmt.Errorf("index %d out of range [0, %d)", i, len(d.entries))
	}
	return d.entries[i].ImagePath, d.entries[i].MaskPath, nil
}

// LoadPair decodes sample i into raw pixel tensors: the image as
// [3, H, W] RGB and the mask as [1, H, W] grayscale, both float32 in
// [0, 1] at their native resolution.
func (d *PairDataset) LoadPair(i int) (image, mask *tensor.Tensor, err error) {
	imagePath, maskPath, err := d.GetItem(i)
	if err != nil {
		return nil, nil, err
	}

	image, err = preprocessing.LoadImageTensor(imagePath, 3)
	if err != nil {
		return nil, nil, err
	}
	mask, err = preprocessing.LoadImageTensor(maskPath, 1)
	if err != nil {
		return nil, nil, err
	}
	return image, mask, nil
}

// Entries returns the paired samples in their sorted order.
func (d *PairDataset) Entries() []Entry {
	return d.entries
}

func (d *PairDataset) String() string {
	return fmt.Sprintf("PairDataset(%s, %d samples)", d.dir, len(d.entries))
}
