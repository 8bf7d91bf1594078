// Package savegame walks an X4 save file in a single forward pass and builds
// the report of sectors and objects of interest.
//
// The walk never materializes the document tree. It keeps the stack of open
// elements and classifies each element by predicates over that stack, so a
// decision can depend on ancestors already seen. Positions are finalized when
// an object closes, once all nested offsets have been observed.
package savegame

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"vaultfinder/internal/log"
	"vaultfinder/internal/names"
	"vaultfinder/internal/reftables"
	"vaultfinder/internal/report"
)

// Options tune a run.
type Options struct {
	// IncludeHighways records super-highway gates as objects.
	IncludeHighways bool

	// Prefetch decompresses on a separate goroutine while the walk consumes
	// the bytes in order.
	Prefetch bool

	// Progress is called once for every sector opened.
	Progress func(macro, name string)
}

// Interpreter holds the state of one walk. It is not safe for concurrent
// use; create one per save file.
type Interpreter struct {
	tables *reftables.Tables
	names  *names.Resolver
	opts   Options

	report    *report.Report
	path      Path
	positions PositionCache
	sectors   []string
	elements  int64

	// remote connection id -> sector macro of the gate holding it
	sectorOfConnection map[string]string
	// super-highway gate connection id -> paired gate connection id
	highwayStep   map[string]string
	lastEntryGate string
	lastExitGate  string

	area *report.ResourceArea
}

// NewInterpreter creates an interpreter over loaded reference tables.
func NewInterpreter(tables *reftables.Tables, resolver *names.Resolver, opts Options) *Interpreter {
	return &Interpreter{
		tables: tables,
		names:  resolver,
		opts:   opts,
	}
}

func (i *Interpreter) reset() {
	i.report = report.New()
	i.path = i.path[:0]
	i.positions = make(PositionCache)
	i.sectors = i.sectors[:0]
	i.elements = 0
	i.sectorOfConnection = make(map[string]string)
	i.highwayStep = make(map[string]string)
	i.lastEntryGate = ""
	i.lastExitGate = ""
	i.area = nil
}

// Run decompresses a gzip save file stream and interprets it.
// No report is returned unless the whole document was processed.
func (i *Interpreter) Run(ctx context.Context, r io.Reader) (*report.Report, error) {
	gz, err := Open(r)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	if !i.opts.Prefetch {
		return i.RunXML(&contextReader{ctx: ctx, r: gz})
	}
	return i.runPrefetched(ctx, gz)
}

// runPrefetched overlaps decompression with parsing. Bytes still reach the
// walk strictly in document order through the pipe.
func (i *Interpreter) runPrefetched(ctx context.Context, src io.Reader) (*report.Report, error) {
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := io.Copy(pw, &contextReader{ctx: gctx, r: src})
		// Read errors surface in the walk through the pipe.
		pw.CloseWithError(err)
		return nil
	})

	var rep *report.Report
	g.Go(func() error {
		var err error
		rep, err = i.RunXML(pr)
		pr.CloseWithError(err)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rep, nil
}

// RunXML interprets an already decompressed XML stream.
func (i *Interpreter) RunXML(r io.Reader) (*report.Report, error) {
	i.reset()
	if err := i.walk(r); err != nil {
		return nil, err
	}
	i.resolveGateTargets()

	sectors, objects := i.report.Counts()
	log.Debug("Save file walk complete", "elements", i.elements, "sectors", sectors, "objects", objects)
	return i.report, nil
}

func (i *Interpreter) walk(r io.Reader) error {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return i.fail(dec, err)
		}
		if err != nil {
			return i.fail(dec, fmt.Errorf("%w: %w", ErrMalformed, err))
		}

		switch t := tok.(type) {
		case xml.StartElement:
			i.elements++
			i.path = append(i.path, newElement(t))
			if err := i.start(); err != nil {
				return i.fail(dec, err)
			}
		case xml.EndElement:
			if len(i.path) == 0 {
				return i.fail(dec, ErrEmptyPath)
			}
			if err := i.end(); err != nil {
				return i.fail(dec, err)
			}
			i.path[len(i.path)-1] = nil
			i.path = i.path[:len(i.path)-1]
		}
	}

	if i.elements == 0 {
		return i.fail(dec, fmt.Errorf("%w: no root element", ErrMalformed))
	}
	if len(i.path) != 0 {
		return i.fail(dec, fmt.Errorf("%w: document ends inside an element", ErrMalformed))
	}
	return nil
}

func (i *Interpreter) fail(dec *xml.Decoder, err error) error {
	return &StructuralError{
		Offset: dec.InputOffset(),
		Path:   i.path.String(),
		Err:    err,
	}
}

// start runs the open-event handlers against the path, new element on top.
func (i *Interpreter) start() error {
	p := i.path

	if isComponentPosition(p) {
		if err := i.positions.record(p); err != nil {
			return err
		}
	}
	if err := i.storeObject(p); err != nil {
		return err
	}
	i.storeResourceStart(p)
	return nil
}

// end runs the close-event handlers before the element is popped.
func (i *Interpreter) end() error {
	p := i.path

	if i.opts.IncludeHighways && isHighway(p) {
		i.storeHighwayStep()
	}
	if i.isObjectOfInterest(p) {
		if obj := p.back(1).object; obj != nil {
			pos := Accumulate(p, i.positions, i.tables.Offsets)
			obj.X, obj.Y, obj.Z = pos.X, pos.Y, pos.Z
		}
	}
	i.storeResourceEnd(p)
	if isSector(p) && len(i.sectors) > 0 {
		i.sectors = i.sectors[:len(i.sectors)-1]
	}
	return nil
}

func (i *Interpreter) isObjectOfInterest(p Path) bool {
	return isStation(p) ||
		isSectorGate(p) ||
		(i.opts.IncludeHighways && isSuperHighwayGate(p)) ||
		isVault(p) ||
		isAbandonedShip(p)
}

func (i *Interpreter) currentSector() (string, bool) {
	if len(i.sectors) == 0 {
		return "", false
	}
	return i.sectors[len(i.sectors)-1], true
}

func (i *Interpreter) storeObject(p Path) error {
	hw := i.opts.IncludeHighways

	switch {
	case isSector(p):
		i.openSector(p.back(1))
	case i.isObjectOfInterest(p):
		return i.openObject(p)
	case isVaultLoot(p):
		return i.markLoot(p)
	case isGateConnected(p, hw):
		i.linkGate(p)
	case isHighwayEntry(p):
		i.lastEntryGate = p.back(1).Attr("id")
	case isHighwayExit(p):
		i.lastExitGate = p.back(1).Attr("id")
	case isGateActivity(p, hw):
		gate := p.back(2)
		if gate.object != nil {
			active := p.back(1).Attr("active") != "0"
			gate.object.IsActive = &active
		}
	}
	return nil
}

func (i *Interpreter) openSector(e *Element) {
	macro := strings.ToLower(e.Attr("macro"))
	if macro == "" {
		log.Warn("Sector without macro", "code", e.Attr("code"))
	}
	name := i.names.SectorName(macro)
	known := e.Attr("known") == "1" || e.Attr("knownto") == "player"

	i.report.AddSector(macro, name, known)
	i.sectors = append(i.sectors, macro)

	log.Debug("Sector opened", "macro", macro, "name", name)
	if i.opts.Progress != nil {
		i.opts.Progress(macro, name)
	}
}

func (i *Interpreter) openObject(p Path) error {
	e := p.back(1)

	code := e.Attr("code")
	if code == "" {
		return ErrMissingCode
	}
	sector, ok := i.currentSector()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoSector, code)
	}

	obj := &report.ObjectRecord{
		Class: e.Attr("class"),
		Code:  code,
		Owner: e.Attr("owner"),
	}

	switch {
	case isSectorGate(p):
		obj.Macro = strings.ToLower(p.back(2).Attr("connection"))
		target := i.names.GateTargetName(obj.Macro)
		obj.TargetName = &target
	case isAbandonedShip(p):
		obj.Macro = i.names.ShipName(e.Attr("macro"))
	default:
		obj.Macro = e.Attr("macro")
	}

	if isSectorGate(p) || (i.opts.IncludeHighways && isSuperHighwayGate(p)) {
		active := true
		obj.IsActive = &active
	}
	if isStation(p) {
		obj.IsWreck = e.Attr("state") == "wreck"
		obj.IsHeadquarter = e.Attr("factionheadquarters") == "1"
	}

	if err := i.report.AddObject(sector, obj); err != nil {
		return err
	}
	e.object = obj
	return nil
}

// markLoot sets the vault flag matching the loot class. Flags only ever go
// from false to true.
func (i *Interpreter) markLoot(p Path) error {
	vault := p.back(4)
	if vault.Attr("code") == "" {
		return ErrMissingCode
	}
	obj := vault.object
	if obj == nil {
		return fmt.Errorf("%w: %q", ErrUnknownVault, vault.Attr("code"))
	}

	switch p.back(1).Attr("class") {
	case "collectableblueprints":
		obj.HasBlueprints = true
	case "signalleak":
		obj.HasSignalleak = true
	case "collectablewares":
		obj.HasWares = true
	}
	return nil
}

// linkGate records both ends of a gate link. The remote connection id maps
// to the current sector; the gate keeps the id its partner will map.
func (i *Interpreter) linkGate(p Path) {
	gate := p.back(4)
	outerID := p.back(2).Attr("id")
	innerID := p.back(1).Attr("connection")

	if sector, ok := i.currentSector(); ok && innerID != "" {
		i.sectorOfConnection[innerID] = sector
	}

	if gate.object == nil {
		return
	}
	if gate.Attr("class") == "gate" {
		gate.object.TargetID = outerID
	} else {
		gate.object.TargetID = innerID
	}
}

func (i *Interpreter) storeHighwayStep() {
	if i.lastEntryGate == "" || i.lastExitGate == "" {
		return
	}
	i.highwayStep[i.lastEntryGate] = i.lastExitGate
	i.highwayStep[i.lastExitGate] = i.lastEntryGate
}

// resolveGateTargets fills in the sector each linked gate leads to. It runs
// after the walk because the partner gate may appear later in the file.
func (i *Interpreter) resolveGateTargets() {
	i.report.Objects(func(_ string, obj *report.ObjectRecord) {
		target := obj.TargetID
		switch obj.Class {
		case "gate":
		case "highwayentrygate", "highwayexitgate":
			target = i.highwayStep[target]
		default:
			return
		}
		if target == "" {
			return
		}

		macro := i.sectorOfConnection[target]
		name := ""
		if raw, ok := i.tables.SectorNames.Lookup(macro); ok && macro != "" {
			name = i.names.Resolve(raw)
		}
		obj.TargetSectorMacro = macro
		obj.TargetSectorName = &name
	})
}

func (i *Interpreter) storeResourceStart(p Path) {
	switch {
	case p.endsWith("resourceareas", "area"):
		e := p.back(1)
		i.area = &report.ResourceArea{
			Resources: make(map[string]*report.Resource),
			X:         intAttr(e, "x"),
			Y:         intAttr(e, "y"),
			Z:         intAttr(e, "z"),
		}
	case p.endsWith("resourceareas", "area", "wares", "ware", "recharge"):
		res := i.resource(p.back(2).Attr("ware"))
		if res == nil {
			return
		}
		e := p.back(1)
		res.RechargeMax = intAttr(e, "max")
		if _, ok := e.LookupAttr("current"); ok {
			res.RechargeCurrent = intAttr(e, "current")
		} else {
			res.RechargeCurrent = res.RechargeMax
		}
		res.RechargeTime = intAttr(e, "time")
	case p.endsWith("resourceareas", "area", "yields", "ware", "yield"):
		if res := i.resource(p.back(2).Attr("ware")); res != nil {
			res.Yield = p.back(1).Attr("name")
		}
	}
}

func (i *Interpreter) resource(ware string) *report.Resource {
	if i.area == nil || ware == "" {
		return nil
	}
	res, ok := i.area.Resources[ware]
	if !ok {
		res = &report.Resource{}
		i.area.Resources[ware] = res
	}
	return res
}

func (i *Interpreter) storeResourceEnd(p Path) {
	if !p.back(1).is("area") || !p.back(2).is("resourceareas") {
		return
	}
	if sector, ok := i.currentSector(); ok && i.area != nil {
		s := i.report.Sectors[sector]
		s.ResourceAreas = append(s.ResourceAreas, i.area)
	}
	i.area = nil
}

// intAttr reads a numeric attribute truncated toward zero; junk reads as 0.
func intAttr(e *Element, name string) int {
	f, err := strconv.ParseFloat(e.Attr(name), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}
