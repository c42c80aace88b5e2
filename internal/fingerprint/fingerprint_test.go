package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"testing"
)

func TestHammingDistance(t *testing.T) {
	tests := []struct {
		name     string
		hash1    uint64
		hash2    uint64
		expected int
	}{
		{"identical", 0x0, 0x0, 0},
		{"completely different", 0xFFFFFFFFFFFFFFFF, 0x0, 64},
		{"one bit different", 0x1, 0x0, 1},
		{"four bits different", 0xF, 0x0, 4},
		{"half different", 0xFFFFFFFF00000000, 0x0, 32},
		{"alternating", 0xAAAAAAAAAAAAAAAA, 0x5555555555555555, 64},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := HammingDistance(tc.hash1, tc.hash2)
			if result != tc.expected {
				t.Errorf("HammingDistance(%x, %x) = %d; want %d",
					tc.hash1, tc.hash2, result, tc.expected)
			}
		})
	}
}

func TestFromBytes(t *testing.T) {
	data := encodePNG(createNoiseImage(64, 64, 1))

	sig, err := FromBytes(data)
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	if sig.PHash == 0 && sig.DHash == 0 {
		t.Error("expected non-zero hashes for a textured image")
	}
	if len(sig.Hex()) != 33 {
		t.Errorf("unexpected hex form %q", sig.Hex())
	}
}

func TestFromBytesConsistency(t *testing.T) {
	data := encodePNG(createNoiseImage(64, 64, 7))

	first, err := FromBytes(data)
	if err != nil {
		t.Fatalf("first FromBytes failed: %v", err)
	}
	second, err := FromBytes(data)
	if err != nil {
		t.Fatalf("second FromBytes failed: %v", err)
	}
	if *first != *second {
		t.Errorf("signatures differ for identical input: %s vs %s", first.Hex(), second.Hex())
	}
}

func TestFromBytesFlatImage(t *testing.T) {
	for _, c := range []color.Color{color.White, color.Black, color.RGBA{R: 128, G: 128, B: 128, A: 255}} {
		_, err := FromBytes(encodePNG(createTestImage(100, 100, c)))
		if err != ErrNoFace {
			t.Errorf("expected ErrNoFace for solid %v, got %v", c, err)
		}
	}
}

func TestFromBytesInvalidImage(t *testing.T) {
	_, err := FromBytes([]byte("not an image"))
	if err == nil {
		t.Fatal("expected error for invalid image data")
	}
	if err == ErrNoFace {
		t.Error("undecodable data should not be reported as no face")
	}
}

func TestComputeGradient(t *testing.T) {
	sig, err := Compute(createGradientImage(100, 100))
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	// Left-to-right brightening never has a brighter left neighbour.
	if sig.DHash != 0 {
		t.Errorf("expected zero dHash for a horizontal gradient, got %016x", sig.DHash)
	}
}

func TestEmbedding(t *testing.T) {
	sig := Signature{PHash: 0x8000000000000001, DHash: 0}
	emb := sig.Embedding()

	if len(emb) != EmbeddingDim {
		t.Fatalf("expected %d dimensions, got %d", EmbeddingDim, len(emb))
	}
	if emb[0] != 1 || emb[63] != 1 || emb[1] != -1 {
		t.Errorf("unexpected pHash expansion: %v", emb[:64])
	}
	for i := 64; i < EmbeddingDim; i++ {
		if emb[i] != -1 {
			t.Fatalf("expected -1 at %d for zero dHash, got %v", i, emb[i])
		}
	}
}

func TestEmbeddingDistanceTracksHamming(t *testing.T) {
	a := Signature{PHash: 0, DHash: 0}
	b := Signature{PHash: 0xFFFF, DHash: 0xFFFF} // 32 of 128 bits differ

	got := CosineDistance(a.Embedding(), b.Embedding())
	want := 2 * 32.0 / EmbeddingDim
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("CosineDistance = %v; want %v", got, want)
	}
}

func TestMatchingBehaviour(t *testing.T) {
	enrolled := mustSignature(t, createNoiseImage(64, 64, 42))
	same := mustSignature(t, createNoiseImage(64, 64, 42))
	stranger := mustSignature(t, createNoiseImage(64, 64, 43))
	inverted := mustSignature(t, invert(createNoiseImage(64, 64, 42)))

	if c := Confidence(CosineDistance(enrolled.Embedding(), same.Embedding())); c != 1 {
		t.Errorf("expected confidence 1 for the same image, got %v", c)
	}
	if c := Confidence(CosineDistance(enrolled.Embedding(), stranger.Embedding())); c >= 0.6 {
		t.Errorf("expected a stranger below 0.6, got %v", c)
	}
	if c := Confidence(CosineDistance(enrolled.Embedding(), inverted.Embedding())); c >= 0.6 {
		t.Errorf("expected the negative below 0.6, got %v", c)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 2},
		{"empty", nil, nil, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CosineDistance(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("CosineDistance = %v; want %v", got, tc.want)
			}
		})
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{2, 0},
		{-0.1, 1},
	}
	for _, tc := range tests {
		if got := Confidence(tc.distance); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Confidence(%v) = %v; want %v", tc.distance, got, tc.want)
		}
	}
}

func TestResizeImage(t *testing.T) {
	img := createTestImage(100, 100, color.White)
	resized := resizeImage(img, 32, 32)

	bounds := resized.Bounds()
	if bounds.Dx() != 32 || bounds.Dy() != 32 {
		t.Errorf("resizeImage produced %dx%d; want 32x32", bounds.Dx(), bounds.Dy())
	}
}

func TestToGrayscale(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.White)
	img.Set(1, 0, color.Black)
	img.Set(0, 1, color.RGBA{R: 255, A: 255})
	img.Set(1, 1, color.RGBA{G: 255, A: 255})

	gray := toGrayscale(img)

	if math.Abs(gray[0][0]-255) > 0.01 {
		t.Errorf("white pixel: got %v, want 255", gray[0][0])
	}
	if gray[1][0] != 0 {
		t.Errorf("black pixel: got %v, want 0", gray[1][0])
	}
	if math.Abs(gray[0][1]-76.245) > 0.01 {
		t.Errorf("red pixel: got %v, want ~76.245", gray[0][1])
	}
	if math.Abs(gray[1][1]-149.685) > 0.01 {
		t.Errorf("green pixel: got %v, want ~149.685", gray[1][1])
	}
}

func TestComputeMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"odd count", []float64{1, 3, 2}, 2},
		{"even count", []float64{1, 2, 3, 4}, 2.5},
		{"single value", []float64{5}, 5},
		{"unsorted", []float64{5, 1, 4, 2, 3}, 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if result := computeMedian(tc.values); result != tc.expected {
				t.Errorf("computeMedian(%v) = %v; want %v", tc.values, result, tc.expected)
			}
		})
	}
}

func mustSignature(t *testing.T, img image.Image) *Signature {
	t.Helper()
	sig, err := FromBytes(encodePNG(img))
	if err != nil {
		t.Fatalf("FromBytes failed: %v", err)
	}
	return sig
}

func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img
}

func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			v := uint8(x * 255 / (width - 1))
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// createNoiseImage builds 8x8-pixel blocks of seeded random grey levels.
func createNoiseImage(width, height int, seed uint64) *image.RGBA {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for by := 0; by < height; by += 8 {
		for bx := 0; bx < width; bx += 8 {
			v := uint8(rng.IntN(256))
			for y := by; y < by+8 && y < height; y++ {
				for x := bx; x < bx+8 && x < width; x++ {
					img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
				}
			}
		}
	}
	return img
}

func invert(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	for i := 0; i < len(img.Pix); i += 4 {
		out.Pix[i] = 255 - img.Pix[i]
		out.Pix[i+1] = 255 - img.Pix[i+1]
		out.Pix[i+2] = 255 - img.Pix[i+2]
		out.Pix[i+3] = img.Pix[i+3]
	}
	return out
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
