package engine

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"strconv"
)

// byteStream expands a seed pair into bytes. Block k is
// HMAC-SHA256(server, "client:0:k"); blocks are consumed in order.
type byteStream struct {
	mac    hash.Hash
	client string
	block  uint64
	pos    int
	buf    [sha256.Size]byte
}

func newByteStream(seeds Seeds) *byteStream {
	b := &byteStream{mac: hmac.New(sha256.New, []byte(seeds.Server)), client: seeds.Client}
	b.fill()
	return b
}

func (b *byteStream) next() byte {
	if b.pos == len(b.buf) {
		b.block++
		b.fill()
	}
	c := b.buf[b.pos]
	b.pos++
	return c
}

// float reads four bytes as a big-endian fraction in [0, 1).
func (b *byteStream) float() float64 {
	var w [4]byte
	for i := range w {
		w[i] = b.next()
	}
	return float64(binary.BigEndian.Uint32(w[:])) / (1 << 32)
}

func (b *byteStream) fill() {
	b.mac.Reset()
	b.mac.Write([]byte(b.client + ":0:" + strconv.FormatUint(b.block, 10)))
	b.mac.Sum(b.buf[:0])
	b.pos = 0
}
