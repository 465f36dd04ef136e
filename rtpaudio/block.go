package rtpaudio

// fecBlock is one in-flight or just-completed reassembly unit: D data
// shards plus P parity shards protecting them. Shard buffers are laid out
// contiguously behind the block header in a single slab, mirroring the
// original's single-malloc layout, so that allocation and cache reuse stay
// O(1) and cache-friendly.
type fecBlock struct {
	baseSeq     uint16
	baseTs      uint32
	ssrc        uint32
	payloadType uint8
	blockSize   uint16

	// dataPackets[i] holds the full wire packet (RTP header + payload)
	// for data shard i; fecPackets[j] holds only the parity payload for
	// FEC shard j. Both slice into the same slab.
	dataPackets [D][]byte
	fecPackets  [P][]byte

	marks [T]bool // true = shard missing

	dataShardsReceived uint16
	fecShardsReceived  uint16

	nextDataPacketIndex uint16
	fullyReassembled    bool
	allowDiscontinuity  bool

	queueTimeMs int64

	prev, next *fecBlock
}

// newFecBlock allocates a fresh block (or reuses slab from a free-cache
// entry of matching size, handled by the caller) sized for blockSize-byte
// shards.
func newFecBlock(blockSize uint16) *fecBlock {
	dataPacketSize := int(blockSize) + rtpHeaderSize
	slab := make([]byte, D*dataPacketSize+P*int(blockSize))

	b := &fecBlock{blockSize: blockSize}
	for i := range b.marks {
		b.marks[i] = true
	}

	off := 0
	for i := 0; i < D; i++ {
		b.dataPackets[i] = slab[off : off+dataPacketSize]
		off += dataPacketSize
	}
	for i := 0; i < P; i++ {
		b.fecPackets[i] = slab[off : off+int(blockSize)]
		off += int(blockSize)
	}
	return b
}

// reset reinitializes a block pulled from the free cache for reuse,
// without reallocating its slab (the caller has already verified the
// blockSize matches).
func (b *fecBlock) reset() {
	for i := range b.dataPackets {
		clearBytes(b.dataPackets[i])
	}
	for i := range b.fecPackets {
		clearBytes(b.fecPackets[i])
	}
	for i := range b.marks {
		b.marks[i] = true
	}
	b.dataShardsReceived = 0
	b.fecShardsReceived = 0
	b.nextDataPacketIndex = 0
	b.fullyReassembled = false
	b.allowDiscontinuity = false
	b.prev = nil
	b.next = nil
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// blockList is the queue's ordered doubly linked list of FEC blocks,
// sorted by ascending base sequence number (head = oldest), plus the
// free-block LIFO cache. Ties on baseSeq are impossible: a block is
// uniquely identified by its baseSeq.
type blockList struct {
	head, tail *fecBlock

	freeHead  *fecBlock
	freeCount int
	cacheCap  int
}

func newBlockList(cacheCap int) *blockList {
	return &blockList{cacheCap: cacheCap}
}

// allocate returns a block sized for blockSize, reusing a cached block if
// its slab already matches; otherwise it discards the mismatched cache
// entry (cache entries have a fixed shard count but variable blockSize)
// and allocates fresh.
func (l *blockList) allocate(blockSize uint16) *fecBlock {
	if b := l.freeHead; b != nil {
		l.freeHead = b.next
		l.freeCount--
		if uint16(len(b.dataPackets[0])-rtpHeaderSize) == blockSize {
			b.next = nil
			return b
		}
		// size mismatch: drop this cache entry and allocate fresh.
	}
	return newFecBlock(blockSize)
}

// insertBefore inserts block b immediately before existing in the ordered
// list. If existing is nil, b is appended at the tail.
func (l *blockList) insertBefore(b *fecBlock, existing *fecBlock) {
	if existing != nil {
		prev := existing.prev
		existing.prev = b
		if prev == nil {
			l.head = b
		} else {
			prev.next = b
		}
		b.prev = prev
		b.next = existing
		return
	}

	b.prev = l.tail
	if l.tail != nil {
		l.tail.next = b
	}
	l.tail = b
	if l.head == nil {
		l.head = b
	}
}

// find walks the list from head looking for a block with the given
// baseSeq. It also returns the first block whose baseSeq comes after
// target (the insertion point for a new block), which is nil if target
// belongs at the tail.
func (l *blockList) find(target uint16) (match *fecBlock, insertBeforeHint *fecBlock) {
	for b := l.head; b != nil; b = b.next {
		if b.baseSeq == target {
			return b, nil
		}
		if isBefore16(target, b.baseSeq) {
			return nil, b
		}
	}
	return nil, nil
}

// removeHead unlinks the head block, folds it into the free cache (or
// releases it if the cache is full), and returns it.
func (l *blockList) removeHead() *fecBlock {
	head := l.head
	l.head = head.next
	if l.head != nil {
		l.head.prev = nil
	} else {
		l.tail = nil
	}

	if l.freeCount >= l.cacheCap {
		head.next = nil
		head.prev = nil
		return head
	}

	head.prev = nil
	head.next = l.freeHead
	l.freeHead = head
	l.freeCount++
	return head
}

// drain releases every block on both the ordered list and the free cache.
func (l *blockList) drain() {
	l.head = nil
	l.tail = nil
	l.freeHead = nil
	l.freeCount = 0
}
