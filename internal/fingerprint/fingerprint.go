// Package fingerprint derives a compact perceptual signature from an image.
// The reference service uses it as a stand-in for a biometric face template.
package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"sort"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// EmbeddingDim is the length of the vector returned by Signature.Embedding.
const EmbeddingDim = 128

// minLumaStdDev is the luminance spread below which an image is treated as
// featureless (blank frame, lens cap, solid fill).
const minLumaStdDev = 2.0

var (
	// ErrUndecodable is returned when the bytes are not a supported image.
	ErrUndecodable = errors.New("image could not be decoded")
	// ErrNoFace is returned for featureless images that cannot carry a face.
	ErrNoFace = errors.New("no face detected in the image")
)

// Signature holds the perceptual hashes of an image.
type Signature struct {
	PHash uint64 // 64-bit DCT perceptual hash
	DHash uint64 // 64-bit difference hash
}

// FromBytes decodes image bytes and computes their signature.
func FromBytes(data []byte) (*Signature, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	return Compute(img)
}

// Compute computes the signature of a decoded image.
func Compute(img image.Image) (*Signature, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, ErrNoFace
	}

	gray := toGrayscale(resizeImage(img, 32, 32))
	if stdDev(gray) < minLumaStdDev {
		return nil, ErrNoFace
	}

	return &Signature{
		PHash: computePHash(gray),
		DHash: computeDHash(img),
	}, nil
}

// Hex renders both hashes as "phash:dhash" hex.
func (s Signature) Hex() string {
	return fmt.Sprintf("%016x:%016x", s.PHash, s.DHash)
}

// Embedding expands the hashes into a ±1 vector so cosine distance between
// two embeddings tracks the Hamming distance between their hashes.
func (s Signature) Embedding() []float32 {
	out := make([]float32, EmbeddingDim)
	for i := range 64 {
		out[i] = bitSign(s.PHash, 63-i)
		out[64+i] = bitSign(s.DHash, 63-i)
	}
	return out
}

func bitSign(v uint64, bit int) float32 {
	if v&(1<<bit) != 0 {
		return 1
	}
	return -1
}

// HammingDistance computes the Hamming distance between two 64-bit hashes.
func HammingDistance(hash1, hash2 uint64) int {
	xor := hash1 ^ hash2
	distance := 0
	for xor != 0 {
		distance++
		xor &= xor - 1 // Clear lowest set bit
	}
	return distance
}

// computePHash computes a 64-bit perceptual hash from a 32x32 grayscale grid using DCT.
func computePHash(gray [][]float64) uint64 {
	dct := computeDCT(gray)

	// Top-left 8x8 DCT coefficients (low frequencies), excluding the DC component.
	lowFreq := make([]float64, 0, 64)
	for u := range 8 {
		for v := range 8 {
			if u == 0 && v == 0 {
				continue
			}
			lowFreq = append(lowFreq, dct[u][v])
		}
	}
	lowFreq = append(lowFreq, dct[8][0])

	median := computeMedian(lowFreq)

	var hash uint64
	for i, v := range lowFreq {
		if v > median {
			hash |= 1 << (63 - i)
		}
	}
	return hash
}

// computeDHash computes a 64-bit difference hash.
func computeDHash(img image.Image) uint64 {
	// 9 columns give 8 horizontal differences per row.
	gray := toGrayscale(resizeImage(img, 9, 8))

	var hash uint64
	bit := 63
	for y := range 8 {
		for x := range 8 {
			if gray[x][y] > gray[x+1][y] {
				hash |= 1 << bit
			}
			bit--
		}
	}
	return hash
}

// resizeImage scales an image to the specified dimensions.
func resizeImage(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255), indexed [x][y].
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			gray[x][y] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
	}
	return gray
}

func stdDev(gray [][]float64) float64 {
	var sum, sumSq float64
	n := 0
	for _, col := range gray {
		for _, v := range col {
			sum += v
			sumSq += v * v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return math.Sqrt(math.Max(0, sumSq/float64(n)-mean*mean))
}

// computeDCT computes the 2D DCT-II of a square grayscale grid.
func computeDCT(gray [][]float64) [][]float64 {
	size := len(gray)
	dct := make([][]float64, size)
	for i := range dct {
		dct[i] = make([]float64, size)
	}

	cosTable := make([][]float64, size)
	for i := range cosTable {
		cosTable[i] = make([]float64, size)
		for j := range size {
			cosTable[i][j] = math.Cos(math.Pi * float64(i) * (2*float64(j) + 1) / (2 * float64(size)))
		}
	}

	for u := range size {
		for v := range size {
			var sum float64
			for x := range size {
				for y := range size {
					sum += gray[x][y] * cosTable[u][x] * cosTable[v][y]
				}
			}
			dct[u][v] = sum
		}
	}
	return dct
}

// computeMedian returns the median value from a slice.
func computeMedian(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}
