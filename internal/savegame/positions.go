package savegame

import (
	"fmt"
	"strconv"
	"strings"

	"vaultfinder/internal/log"
	"vaultfinder/internal/reftables"
)

// PositionCache maps a component code to the offset declared in its
// component/offset/position child.
type PositionCache map[string]reftables.Vector

// record stores the position element at the top of p for the component
// two levels up. Missing coordinates default to 0.
func (c PositionCache) record(p Path) error {
	position := p.back(1)
	code := p.back(3).Attr("code")
	if code == "" {
		return nil
	}

	var v reftables.Vector
	var err error
	if v.X, err = coordinate(position, "x"); err != nil {
		return err
	}
	if v.Y, err = coordinate(position, "y"); err != nil {
		return err
	}
	if v.Z, err = coordinate(position, "z"); err != nil {
		return err
	}

	c[code] = v
	return nil
}

func coordinate(e *Element, name string) (float64, error) {
	raw, ok := e.LookupAttr(name)
	if !ok || raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s coordinate %q", ErrMalformed, name, raw)
	}
	return f, nil
}

// Accumulate computes the absolute position of the object at the top of p:
// for every component on the path its cached local offset plus its macro's
// table offset, then the table offset of every cluster-gate connection.
// Elements are visited root first so the float sum is reproducible.
func Accumulate(p Path, cache PositionCache, offsets reftables.OffsetTable) reftables.Vector {
	var pos reftables.Vector

	for _, e := range p {
		if e.Tag != "component" {
			continue
		}
		if code := e.Attr("code"); code != "" {
			pos = pos.Add(cache[code])
		}
		if macro := e.Attr("macro"); macro != "" {
			if off, ok := offsets.Lookup(macro); ok {
				pos = pos.Add(off)
			}
		}
	}

	for _, e := range p {
		if e.Tag != "connection" {
			continue
		}
		gate := e.Attr("connection")
		if !strings.HasPrefix(gate, clusterGatePrefix) {
			continue
		}
		if off, ok := offsets.Lookup(gate); ok {
			pos = pos.Add(off)
		} else {
			log.Debug("Missing gate connection offset", "connection", gate)
		}
	}

	return pos
}
