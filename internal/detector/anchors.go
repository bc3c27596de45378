package detector

import (
	"github.com/pkg/errors"
)

// Anchor is the reference centre a model row predicts offsets against.
type Anchor struct {
	CenterX float32 `json:"center_x"`
	CenterY float32 `json:"center_y"`
	Scale   int     `json:"scale"`
}

// AnchorTable is the ordered anchor sequence. Row i of every output tensor
// belongs to anchor i. A table is never modified after construction and
// may be shared by concurrent decoders.
type AnchorTable struct {
	anchors []Anchor
	scales  []ScaleSpec
}

// NewAnchorTable generates anchors for each scale in order, walking grid
// cells row-major and emitting AnchorsPerCell anchors per cell. The total
// must equal expected.
func NewAnchorTable(scales []ScaleSpec, expected int) (*AnchorTable, error) {
	if len(scales) == 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "no anchor scales")
	}

	total := 0
	for i, s := range scales {
		if s.GridWidth <= 0 || s.GridHeight <= 0 || s.AnchorsPerCell <= 0 {
			return nil, errors.Wrapf(ErrInvalidConfig,
				"scale %d (%s): grid %dx%d, %d anchors per cell",
				i, s.Name, s.GridWidth, s.GridHeight, s.AnchorsPerCell)
		}
		total += s.Count()
	}
	if total != expected {
		return nil, errors.Wrapf(ErrAnchorCountMismatch, "scales produce %d anchors, model has %d",
			total, expected)
	}

	anchors := make([]Anchor, 0, total)
	for level, s := range scales {
		for row := 0; row < s.GridHeight; row++ {
			cy := (float32(row) + 0.5) / float32(s.GridHeight)
			for col := 0; col < s.GridWidth; col++ {
				cx := (float32(col) + 0.5) / float32(s.GridWidth)
				for k := 0; k < s.AnchorsPerCell; k++ {
					anchors = append(anchors, Anchor{CenterX: cx, CenterY: cy, Scale: level})
				}
			}
		}
	}

	kept := make([]ScaleSpec, len(scales))
	copy(kept, scales)

	return &AnchorTable{anchors: anchors, scales: kept}, nil
}

// Len returns the number of anchors.
func (t *AnchorTable) Len() int {
	return len(t.anchors)
}

// At returns anchor i.
func (t *AnchorTable) At(i int) Anchor {
	return t.anchors[i]
}

// Scales returns a copy of the scales the table was built from.
func (t *AnchorTable) Scales() []ScaleSpec {
	out := make([]ScaleSpec, len(t.scales))
	copy(out, t.scales)
	return out
}

// Counts returns the number of anchors each scale contributes, in order.
func (t *AnchorTable) Counts() []int {
	counts := make([]int, len(t.scales))
	for i, s := range t.scales {
		counts[i] = s.Count()
	}
	return counts
}
