// Package rs wraps github.com/klauspost/reedsolomon as the black-box
// reconstruct(shards, marks, total, size) primitive the RTP audio FEC
// queue treats as an external collaborator. The Reed-Solomon algebra
// itself is not this package's concern; this is purely the adapter
// between the queue's shard/marks representation and the library's.
package rs

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Codec reconstructs missing shards of a fixed (dataShards, parityShards)
// block using Reed-Solomon erasure coding.
type Codec struct {
	enc         reedsolomon.Encoder
	dataShards  int
	totalShards int
}

// New builds a Codec for the given fixed data/parity shard counts.
//
// The reference this package is modeled on patches a specific 8-byte
// constant directly into its C Reed-Solomon library's internal generator
// matrix storage immediately after construction, so its arithmetic
// matches one particular external encoder bit-for-bit. klauspost/reedsolomon
// encapsulates its matrix behind the Encoder interface and does not expose
// it for patching. WithPAR1Matrix selects a non-default matrix-generation
// convention (historically, the one used to interoperate with the par2
// tool) in place of the library's own Vandermonde default, which is the
// closest available analogue to "use the matrix the external tool
// expects" available through the public API. See DESIGN.md for the full
// rationale.
func New(dataShards, parityShards int) (*Codec, error) {
	enc, err := reedsolomon.New(dataShards, parityShards, reedsolomon.WithPAR1Matrix())
	if err != nil {
		return nil, fmt.Errorf("rs: new encoder (d=%d, p=%d): %w", dataShards, parityShards, err)
	}
	return &Codec{
		enc:         enc,
		dataShards:  dataShards,
		totalShards: dataShards + parityShards,
	}, nil
}

// Reconstruct fills in the shards marked missing in marks, in place.
// shards must have length Codec's total shard count, with every non-missing
// entry holding exactly shardSize bytes; missing entries are overwritten
// with reconstructed data on success. It returns an error if there are not
// enough surviving shards to reconstruct, or if the library detects a
// mismatched configuration.
func (c *Codec) Reconstruct(shards [][]byte, marks []bool) error {
	if len(shards) != c.totalShards || len(marks) != c.totalShards {
		return fmt.Errorf("rs: shard/marks length must be %d, got %d/%d", c.totalShards, len(shards), len(marks))
	}

	working := make([][]byte, c.totalShards)
	for i, missing := range marks {
		if missing {
			working[i] = nil
			continue
		}
		working[i] = shards[i]
	}

	if err := c.enc.Reconstruct(working); err != nil {
		return fmt.Errorf("rs: reconstruct: %w", err)
	}

	for i, missing := range marks {
		if missing {
			copy(shards[i], working[i])
		}
	}
	return nil
}

// Encode computes the parity shards of shards in place. shards must have
// length TotalShards(), with the first DataShards() entries already
// populated with equal-length data; the remaining entries are overwritten
// with the computed parity. This is the sender side of the same codec the
// queue uses to reconstruct — an external collaborator per spec.md §1, but
// implemented here so the test harness has a real encoder to drive the
// queue against.
func (c *Codec) Encode(shards [][]byte) error {
	if len(shards) != c.totalShards {
		return fmt.Errorf("rs: shards length must be %d, got %d", c.totalShards, len(shards))
	}
	if err := c.enc.Encode(shards); err != nil {
		return fmt.Errorf("rs: encode: %w", err)
	}
	return nil
}

// DataShards is the configured number of data shards.
func (c *Codec) DataShards() int { return c.dataShards }

// TotalShards is the configured number of data+parity shards.
func (c *Codec) TotalShards() int { return c.totalShards }
