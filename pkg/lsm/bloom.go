package lsm

import (
	"encoding/binary"
	"hash/fnv"
	"io"
	"math"
)

// BloomFilter is a probabilistic set-membership test over int32 keys.
// False positives are possible; false negatives are not, provided every
// key that was Add-ed is later queried through MayContain.
//
// Bit indices are derived by double hashing: h1 = H(key), h2 = H(h1 XOR
// 0x9e3779b9), index(i) = (h1 + i*h2) mod m. The same H must be used for
// Add and MayContain, which holds here since both call hash64.
type BloomFilter struct {
	bits      []byte
	numBits   uint64
	numHashes uint64
}

// NewBloomFilter sizes a filter for expectedItems entries at the given
// target false-positive rate, per the standard optimal-parameters formulas:
// m = ceil(-n*ln(p) / ln(2)^2), k = round((m/n) * ln 2). Both are clamped
// to at least 1 so an empty or degenerate table still yields a usable filter.
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	if n < 1 {
		n = 1
	}

	m := uint64(math.Ceil(-n * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if m < 1 {
		m = 1
	}

	k := uint64(math.Round((float64(m) / n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	return &BloomFilter{
		bits:      make([]byte, (m+7)/8),
		numBits:   m,
		numHashes: k,
	}
}

// Add sets the k bits derived from key.
func (bf *BloomFilter) Add(key int32) {
	h1, h2 := bf.seeds(key)
	for i := uint64(0); i < bf.numHashes; i++ {
		bf.setBit(bf.index(h1, h2, i))
	}
}

// MayContain reports whether key might be present. An empty filter
// (numBits derived from n=0 is impossible here, but a freshly zeroed
// filter with no Add calls) always returns false.
func (bf *BloomFilter) MayContain(key int32) bool {
	h1, h2 := bf.seeds(key)
	for i := uint64(0); i < bf.numHashes; i++ {
		if !bf.testBit(bf.index(h1, h2, i)) {
			return false
		}
	}
	return true
}

func (bf *BloomFilter) seeds(key int32) (h1, h2 uint64) {
	h1 = hash64(uint32(key))
	h2 = hash64(uint32(h1 ^ 0x9e3779b9))
	return h1, h2
}

func (bf *BloomFilter) index(h1, h2, i uint64) uint64 {
	return (h1 + i*h2) % bf.numBits
}

func (bf *BloomFilter) setBit(idx uint64) {
	bf.bits[idx/8] |= 1 << (idx % 8)
}

func (bf *BloomFilter) testBit(idx uint64) bool {
	return bf.bits[idx/8]&(1<<(idx%8)) != 0
}

// hash64 is the stable 64-bit integer hash H required by spec: FNV-1a over
// the key's 4 little-endian bytes. It must stay identical between Add and
// MayContain, which it is since both route through this function.
func hash64(key uint32) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], key)
	h := fnv.New64a()
	_, _ = h.Write(buf[:]) // hash.Hash.Write never errors
	return h.Sum64()
}

// EstimateFalsePositiveRate estimates the current false-positive rate
// given itemCount entries added so far: p = (1 - e^(-k*n/m))^k.
func (bf *BloomFilter) EstimateFalsePositiveRate(itemCount int) float64 {
	k := float64(bf.numHashes)
	n := float64(itemCount)
	m := float64(bf.numBits)
	if m == 0 {
		return 1
	}
	return math.Pow(1.0-math.Exp(-k*n/m), k)
}

// WriteTo serializes the filter per spec §4.1/§6: m (u64 LE) | k (u64 LE) | raw bits.
func (bf *BloomFilter) WriteTo(w io.Writer) error {
	var header [16]byte
	binary.LittleEndian.PutUint64(header[0:8], bf.numBits)
	binary.LittleEndian.PutUint64(header[8:16], bf.numHashes)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(bf.bits)
	return err
}

// ReadBloomFilter deserializes a filter written by WriteTo.
func ReadBloomFilter(r io.Reader) (*BloomFilter, error) {
	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	m := binary.LittleEndian.Uint64(header[0:8])
	k := binary.LittleEndian.Uint64(header[8:16])

	bits := make([]byte, (m+7)/8)
	if _, err := io.ReadFull(r, bits); err != nil {
		return nil, err
	}

	return &BloomFilter{bits: bits, numBits: m, numHashes: k}, nil
}
