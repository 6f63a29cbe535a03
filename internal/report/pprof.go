package report

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"github.com/coral-mesh/codesize/pkg/ir"
)

const (
	// SampleTypeSize is the pprof sample type for item sizes.
	SampleTypeSize = "size"
	// SampleUnitBytes is the unit for size samples.
	SampleUnitBytes = "bytes"
)

// ToProfile converts items into a pprof profile with one single-frame
// sample per non-empty item, so `go tool pprof -top` ranks items by size.
// binary names the mapping.
func ToProfile(items *ir.Items, binary, buildID string) (*profile.Profile, error) {
	mapping := &profile.Mapping{ID: 1, File: binary, BuildID: buildID, HasFunctions: true}
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: SampleTypeSize, Unit: SampleUnitBytes},
		},
		DefaultSampleType: SampleTypeSize,
		Mapping:           []*profile.Mapping{mapping},
	}

	var nextID uint64
	for _, it := range items.All() {
		if it.Size == 0 {
			continue
		}
		nextID++

		fn := &profile.Function{ID: nextID, Name: it.Name, SystemName: it.ID.String()}
		loc := &profile.Location{
			ID:      nextID,
			Mapping: mapping,
			Line:    []profile.Line{{Function: fn}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{clampInt64(it.Size)},
			Label:    map[string][]string{"kind": {it.Kind.String()}},
		})
	}

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}
	return p, nil
}

// WriteProfile writes items as a gzip-compressed pprof protobuf.
func WriteProfile(w io.Writer, items *ir.Items, binary, buildID string) error {
	p, err := ToProfile(items, binary, buildID)
	if err != nil {
		return err
	}
	if err := p.Write(w); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}
