package chips

import (
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Sensors that can accompany a reference chip
var Sensors = []string{"planet", "s1", "ndvi", "palsar"}

// DefaultSeed makes splits reproducible
const DefaultSeed = 42

// SplitConfig configures Split
type SplitConfig struct {
	// ChipDir holds the cropped *ref.tif masks and their sensor images
	ChipDir string
	// OutDir receives train_images, train_masks, val_images and val_masks
	OutDir        string
	TrainFraction float64
	// Sensors lists the enabled sensors; images of the others are not copied
	Sensors []string
	Seed    uint64
}

// SplitResult lists the masks of each set
type SplitResult struct {
	Train []string `json:"train"`
	Val   []string `json:"val"`
}

// Split draws a seeded random sample of TrainFraction of the reference masks
// as the training set; the rest is validation. Masks and the images of the
// enabled sensors are copied into the set directories.
func Split(cfg SplitConfig) (*SplitResult, error) {
	if cfg.TrainFraction < 0 || cfg.TrainFraction > 1 {
		return nil, fmt.Errorf("train fraction must be within [0, 1], got %v", cfg.TrainFraction)
	}
	for _, s := range cfg.Sensors {
		if !IsSensor(s) {
			return nil, fmt.Errorf("unknown sensor %q", s)
		}
	}

	masks, err := filepath.Glob(filepath.Join(cfg.ChipDir, "*ref.tif"))
	if err != nil {
		return nil, err
	}
	sort.Strings(masks)

	train, val := sample(masks, cfg.TrainFraction, cfg.Seed)

	dirs := map[string]string{}
	for _, d := range []string{"train_images", "train_masks", "val_images", "val_masks"} {
		dirs[d] = filepath.Join(cfg.OutDir, d)
		if err := os.MkdirAll(dirs[d], 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dirs[d], err)
		}
	}

	if err := copySet(train, cfg.Sensors, dirs["train_images"], dirs["train_masks"]); err != nil {
		return nil, err
	}
	if err := copySet(val, cfg.Sensors, dirs["val_images"], dirs["val_masks"]); err != nil {
		return nil, err
	}

	log.Printf("[Split] %d masks: %d train, %d val, sensors %v", len(masks), len(train), len(val), cfg.Sensors)
	return &SplitResult{Train: train, Val: val}, nil
}

// sample picks int(len*frac) masks with a seeded shuffle; both sets come back
// in name order
func sample(masks []string, frac float64, seed uint64) (train, val []string) {
	n := int(float64(len(masks)) * frac)
	r := rand.New(rand.NewPCG(seed, seed))
	perm := r.Perm(len(masks))

	picked := make(map[int]bool, n)
	for _, i := range perm[:n] {
		picked[i] = true
	}
	for i, m := range masks {
		if picked[i] {
			train = append(train, m)
		} else {
			val = append(val, m)
		}
	}
	return train, val
}

func copySet(masks, sensors []string, imageDir, maskDir string) error {
	for _, sensor := range sensors {
		for _, m := range masks {
			img := strings.TrimSuffix(m, "ref.tif") + sensor + ".tif"
			if err := copyFile(img, filepath.Join(imageDir, filepath.Base(img))); err != nil {
				return err
			}
		}
	}
	for _, m := range masks {
		if err := copyFile(m, filepath.Join(maskDir, filepath.Base(m))); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

// IsSensor reports whether s names a supported sensor
func IsSensor(s string) bool {
	for _, k := range Sensors {
		if k == s {
			return true
		}
	}
	return false
}
