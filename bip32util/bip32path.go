package bip32util

import (
	"math"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/hdkeychain"
	"github.com/pkg/errors"
)

var (
	// ErrPathAlreadyMaxDepth is returned when the
	// BIP32 path has reached it's theoretical maximum
	// depth of 255, since additional derivations cannot
	// safely be serialized in a uint8
	ErrPathAlreadyMaxDepth = errors.New("cannot create child path, currently at max BIP32 depth")

	// ErrIndexOutOfRange is returned when a segment index
	// collides with the hardened bit.
	ErrIndexOutOfRange = errors.New("segment index must be lower than 2^31")
)

const (
	privatePathPrefix = "m"
	publicPathPrefix  = "M"
	hardenedSymbol    = "'"
	maxBip32Depth     = math.MaxUint8
)

// Segment is one step of a derivation path.
type Segment struct {
	Index    uint32
	Hardened bool
}

// Sequence returns the BIP32 child number of the segment,
// with the leftmost bit set if the segment is hardened.
func (s Segment) Sequence() uint32 {
	if s.Hardened {
		return s.Index + hdkeychain.HardenedKeyStart
	}
	return s.Index
}

// String renders the segment, with the hardened symbol
// appended if needed.
func (s Segment) String() string {
	if s.Hardened {
		return strconv.FormatUint(uint64(s.Index), 10) + hardenedSymbol
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}

// Path defines a BIP32 derivation path as an ordered,
// non-empty list of segments.
type Path struct {
	Segments []Segment
}

// Encode parses a path string such as m/84'/0'/0'/0/2
// into a Path. The leading m (or M) is optional. Any
// deviation from the format fails with a *MalformedPathError.
func Encode(path string) (*Path, error) {
	if len(path) == 0 {
		return nil, malformed(path, "path cannot be empty string", nil)
	}

	pieces := strings.Split(path, "/")
	if pieces[0] == privatePathPrefix || pieces[0] == publicPathPrefix {
		pieces = pieces[1:]
	}

	depth := len(pieces)
	if depth == 0 {
		return nil, malformed(path, "path has no segments", nil)
	}
	if depth > maxBip32Depth {
		return nil, malformed(path, "path exceeds the maximum number of allowed derivations", nil)
	}

	segments := make([]Segment, depth)
	for i, piece := range pieces {
		segment, err := parseSegment(piece)
		if err != nil {
			return nil, malformed(path, "invalid segment "+strconv.Quote(piece), err)
		}
		segments[i] = segment
	}

	return &Path{Segments: segments}, nil
}

func parseSegment(piece string) (Segment, error) {
	hardened := false
	switch strings.Count(piece, hardenedSymbol) {
	case 0:
	case 1:
		if !strings.HasSuffix(piece, hardenedSymbol) {
			return Segment{}, errors.New("hardened symbol must terminate the segment")
		}
		hardened = true
		piece = strings.TrimSuffix(piece, hardenedSymbol)
	default:
		return Segment{}, errors.New("cannot contain multiple ' characters")
	}

	index, err := strconv.ParseUint(piece, 10, 31)
	if err != nil {
		return Segment{}, err
	}

	return Segment{Index: uint32(index), Hardened: hardened}, nil
}

// PathFromDeviceFormat rebuilds a Path out of a list of
// BIP32 child numbers.
func PathFromDeviceFormat(sequences []uint32) (*Path, error) {
	if len(sequences) == 0 {
		return nil, malformed("", "path has no segments", nil)
	}
	if len(sequences) > maxBip32Depth {
		return nil, malformed("", "path exceeds the maximum number of allowed derivations", nil)
	}

	segments := make([]Segment, len(sequences))
	for i, sequence := range sequences {
		if sequence&hdkeychain.HardenedKeyStart != 0 {
			segments[i] = Segment{Index: sequence - hdkeychain.HardenedKeyStart, Hardened: true}
		} else {
			segments[i] = Segment{Index: sequence}
		}
	}

	return &Path{Segments: segments}, nil
}

// DeviceFormat returns the path as the list of child
// numbers expected by signing devices.
func (p *Path) DeviceFormat() []uint32 {
	sequences := make([]uint32, len(p.Segments))
	for i, segment := range p.Segments {
		sequences[i] = segment.Sequence()
	}
	return sequences
}

// Child appends another segment to the path, returning
// a new structure.
func (p *Path) Child(index uint32, hardened bool) (*Path, error) {
	if p.Depth()+1 > maxBip32Depth {
		return nil, ErrPathAlreadyMaxDepth
	}
	if index >= hdkeychain.HardenedKeyStart {
		return nil, ErrIndexOutOfRange
	}

	segments := make([]Segment, p.Depth(), p.Depth()+1)
	copy(segments, p.Segments)
	segments = append(segments, Segment{Index: index, Hardened: hardened})

	return &Path{Segments: segments}, nil
}

// Depth returns the current depth of the path
func (p *Path) Depth() int {
	return len(p.Segments)
}

// Last returns the final segment of the path.
func (p *Path) Last() Segment {
	return p.Segments[len(p.Segments)-1]
}

// IsContainedIn checks that the current p is completely
// specified in the other Path.
func (p *Path) IsContainedIn(other *Path) bool {
	depth := p.Depth()
	if depth > other.Depth() {
		return false
	}

	for i := 0; i < depth; i++ {
		if p.Segments[i] != other.Segments[i] {
			return false
		}
	}

	return true
}

// String encodes the Path structure into a string that
// is human readable, eg, m/84'/0'/0'/0/2
func (p *Path) String() string {
	steps := make([]string, 1+p.Depth())
	steps[0] = privatePathPrefix
	for i, segment := range p.Segments {
		steps[1+i] = segment.String()
	}

	return strings.Join(steps, "/")
}
