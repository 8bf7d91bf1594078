// Package gatemap builds the sector network implied by resolved gate targets
// and renders it with graphviz.
package gatemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"vaultfinder/internal/log"
	"vaultfinder/internal/report"
)

const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

var ErrUnknownFormat = errors.New("unknown gate map format")

// Sector is one vertex of the gate map.
type Sector struct {
	Macro  string
	Name   string
	Known  bool
	Vaults int
}

// Edge attribute keys.
const (
	attrKind   = "kind"
	attrActive = "active"
)

// Build creates a directed graph with one vertex per sector and one edge per
// sector pair linked by at least one gate whose target sector is known.
func Build(rep *report.Report) (graph.Graph[string, Sector], error) {
	g := graph.New(func(s Sector) string { return s.Macro }, graph.Directed())

	for _, macro := range sortedMacros(rep) {
		s := rep.Sectors[macro]
		v := Sector{Macro: macro, Name: s.Name, Known: s.IsKnown}
		for _, obj := range s.Objects {
			if isVault(obj) {
				v.Vaults++
			}
		}
		if err := g.AddVertex(v); err != nil {
			return nil, fmt.Errorf("failed to add sector %q: %w", macro, err)
		}
	}

	edges := 0
	var err error
	rep.Objects(func(source string, obj *report.ObjectRecord) {
		target := obj.TargetSectorMacro
		if err != nil || target == "" || target == source {
			return
		}
		if _, verr := g.Vertex(target); errors.Is(verr, graph.ErrVertexNotFound) {
			log.Debug("Gate target outside report", "gate", obj.Code, "target", target)
			return
		}

		kind := "gate"
		if obj.Class != "gate" {
			kind = "highway"
		}
		active := obj.IsActive == nil || *obj.IsActive

		aerr := g.AddEdge(source, target,
			graph.EdgeAttribute(attrKind, kind),
			graph.EdgeAttribute(attrActive, fmt.Sprint(active)))
		switch {
		case aerr == nil:
			edges++
		case errors.Is(aerr, graph.ErrEdgeAlreadyExists):
		default:
			err = fmt.Errorf("failed to link %q to %q: %w", source, target, aerr)
		}
	})
	if err != nil {
		return nil, err
	}

	log.Debug("Gate map built", "sectors", len(rep.Sectors), "edges", edges)
	return g, nil
}

func isVault(obj *report.ObjectRecord) bool {
	return obj.Class == "datavault" || strings.Contains(obj.Macro, "erlking_vault")
}

func sortedMacros(rep *report.Report) []string {
	macros := make([]string, 0, len(rep.Sectors))
	for macro := range rep.Sectors {
		macros = append(macros, macro)
	}
	sort.Strings(macros)
	return macros
}

// Render lays out g and writes it to w in format (dot or svg).
// A pair of sectors linked both ways is drawn as a single two-headed edge.
func Render(ctx context.Context, g graph.Graph[string, Sector], format string, w io.Writer) error {
	gvFormat, err := parseFormat(format)
	if err != nil {
		return err
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer gv.Close()

	gvGraph, err := gv.Graph()
	if err != nil {
		return fmt.Errorf("failed to create graphviz graph: %w", err)
	}
	defer gvGraph.Close()

	gvGraph.SetLayout("neato")
	gvGraph.SetOverlap(false)
	gvGraph.SetSplines("true")
	gvGraph.Attr(int(cgraph.NODE), "style", "filled,rounded")
	gvGraph.Attr(int(cgraph.NODE), "shape", "box")

	adjacencyMap, err := g.AdjacencyMap()
	if err != nil {
		return fmt.Errorf("failed to get adjacency map: %w", err)
	}

	sources := make([]string, 0, len(adjacencyMap))
	for macro := range adjacencyMap {
		sources = append(sources, macro)
	}
	sort.Strings(sources)

	gvNodes := make(map[string]*graphviz.Node, len(sources))
	for _, macro := range sources {
		sector, err := g.Vertex(macro)
		if err != nil {
			return fmt.Errorf("failed to read sector %q: %w", macro, err)
		}

		node, err := gvGraph.CreateNodeByName(macro)
		if err != nil {
			return fmt.Errorf("failed to create node %q: %w", macro, err)
		}
		node.SetLabel(nodeLabel(sector))
		if sector.Known {
			node.SetFillColor("lightblue")
		} else {
			node.SetFillColor("lightgray")
		}
		if sector.Vaults > 0 {
			node.SetPenWidth(3)
		}
		gvNodes[macro] = node
	}

	processed := make(map[string]bool)
	for _, source := range sources {
		targets := make([]string, 0, len(adjacencyMap[source]))
		for target := range adjacencyMap[source] {
			targets = append(targets, target)
		}
		sort.Strings(targets)

		for _, target := range targets {
			key := source + "|" + target
			if target < source {
				key = target + "|" + source
			}
			if processed[key] {
				continue
			}
			processed[key] = true

			edge, err := gvGraph.CreateEdgeByName("", gvNodes[source], gvNodes[target])
			if err != nil {
				return fmt.Errorf("failed to create edge %q -> %q: %w", source, target, err)
			}

			props := adjacencyMap[source][target].Properties
			if props.Attributes[attrKind] == "highway" {
				edge.SetColor("orange")
			}
			if props.Attributes[attrActive] == "false" {
				edge.SetStyle(cgraph.DashedEdgeStyle)
			}
			if _, back := adjacencyMap[target][source]; back {
				edge.SetDir(cgraph.BothDir)
			} else {
				edge.SetDir(cgraph.ForwardDir)
			}
		}
	}

	if err := gv.Render(ctx, gvGraph, gvFormat, w); err != nil {
		return fmt.Errorf("failed to render gate map: %w", err)
	}
	return nil
}

func nodeLabel(s Sector) string {
	switch s.Vaults {
	case 0:
		return s.Name
	case 1:
		return s.Name + "\\n1 vault"
	default:
		return fmt.Sprintf("%s\\n%d vaults", s.Name, s.Vaults)
	}
}

func parseFormat(format string) (graphviz.Format, error) {
	switch format {
	case FormatDOT:
		return graphviz.Format(FormatDOT), nil
	case FormatSVG:
		return graphviz.SVG, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteFile renders the gate map of rep to path. The file is only replaced
// once rendering succeeded.
func WriteFile(ctx context.Context, rep *report.Report, path, format string) error {
	g, err := Build(rep)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Render(ctx, g, format, &buf); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create gate map directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write gate map: %w", err)
	}

	log.Info("Gate map written", "file", path, "format", format)
	return nil
}
