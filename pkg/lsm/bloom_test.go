package lsm

import (
	"bytes"
	"testing"
)

func TestBloomFilter_NoFalseNegatives(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	for i := int32(0); i < 1000; i++ {
		bf.Add(i)
	}

	for i := int32(0); i < 1000; i++ {
		if !bf.MayContain(i) {
			t.Fatalf("false negative for key %d", i)
		}
	}
}

func TestBloomFilter_FalsePositiveRateWithinBounds(t *testing.T) {
	expected := 1000
	target := 0.01
	bf := NewBloomFilter(expected, target)

	for i := int32(0); i < int32(expected); i++ {
		bf.Add(i)
	}

	falsePositives := 0
	trials := 10000
	for i := int32(0); i < int32(trials); i++ {
		key := int32(expected) + 1_000_000 + i
		if bf.MayContain(key) {
			falsePositives++
		}
	}

	actual := float64(falsePositives) / float64(trials)
	if actual > target*3 {
		t.Errorf("false positive rate %.4f exceeds 3x target %.4f", actual, target)
	}
}

func TestBloomFilter_InvalidParametersFallBackToDefaults(t *testing.T) {
	for _, tc := range []struct {
		items int
		rate  float64
	}{
		{0, 0.01},
		{-10, 0.01},
		{100, 0},
		{100, 1.0},
		{100, 2.0},
	} {
		bf := NewBloomFilter(tc.items, tc.rate)
		if bf == nil {
			t.Fatalf("NewBloomFilter(%d, %v) returned nil", tc.items, tc.rate)
		}
		bf.Add(42)
		if !bf.MayContain(42) {
			t.Errorf("NewBloomFilter(%d, %v): added key not found", tc.items, tc.rate)
		}
	}
}

func TestBloomFilter_EstimateFalsePositiveRate(t *testing.T) {
	bf := NewBloomFilter(1000, 0.01)

	if rate := bf.EstimateFalsePositiveRate(0); rate != 0 {
		t.Errorf("expected 0 estimate with 0 items, got %f", rate)
	}

	rateAtExpected := bf.EstimateFalsePositiveRate(1000)
	rateAtDouble := bf.EstimateFalsePositiveRate(2000)
	if rateAtDouble <= rateAtExpected {
		t.Error("expected estimate to increase as item count grows")
	}
}

func TestBloomFilter_WriteToAndReadRoundTrip(t *testing.T) {
	bf := NewBloomFilter(200, 0.01)
	for i := int32(0); i < 200; i++ {
		bf.Add(i * 7)
	}

	var buf bytes.Buffer
	if err := bf.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	restored, err := ReadBloomFilter(&buf)
	if err != nil {
		t.Fatalf("ReadBloomFilter: %v", err)
	}

	for i := int32(0); i < 200; i++ {
		if !restored.MayContain(i * 7) {
			t.Errorf("restored filter missing key %d after round trip", i*7)
		}
	}
}

func TestBloomFilter_DuplicateAddsAreIdempotent(t *testing.T) {
	bf := NewBloomFilter(100, 0.01)
	for i := 0; i < 10; i++ {
		bf.Add(99)
	}
	if !bf.MayContain(99) {
		t.Error("expected to find key after duplicate adds")
	}
}
