package faidx

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// blockOffset maps the start of a BGZF block between the compressed and
// the uncompressed coordinate system.
type blockOffset struct {
	Compressed   int64
	Uncompressed int64
}

// parseGzi reads the bgzip .gzi block-offset index: a little-endian u64
// entry count followed by (compressed, uncompressed) u64 pairs. The entry
// for the first block at (0, 0) is implicit and not stored.
func parseGzi(r io.Reader) ([]blockOffset, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("entry count: %w", err)
	}
	const maxEntries = 1 << 32
	if count > maxEntries {
		return nil, fmt.Errorf("implausible entry count %d", count)
	}

	blocks := make([]blockOffset, 1, count+1)
	blocks[0] = blockOffset{}
	for i := uint64(0); i < count; i++ {
		var pair [2]uint64
		if err := binary.Read(r, binary.LittleEndian, &pair); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		blocks = append(blocks, blockOffset{
			Compressed:   int64(pair[0]),
			Uncompressed: int64(pair[1]),
		})
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Uncompressed < blocks[j].Uncompressed
	})

	return blocks, nil
}

// blockAt returns the last block starting at or before the uncompressed
// offset.
func blockAt(blocks []blockOffset, uncompressed int64) blockOffset {
	i := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].Uncompressed > uncompressed
	})
	return blocks[i-1]
}
