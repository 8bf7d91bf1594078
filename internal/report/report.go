// Package report holds the structured result of a save file walk: sectors
// keyed by macro, each with the objects of interest found inside it.
package report

import (
	"errors"
	"fmt"
)

// ErrDuplicateCode reports a second object with the same code in one sector.
var ErrDuplicateCode = errors.New("duplicate object code")

// Report is the top-level document handed to the viewer.
type Report struct {
	Sectors map[string]*Sector `json:"sectors"`
}

// Sector is one sector and the objects found inside it.
// Fields are declared in key order so the encoded JSON is sorted.
type Sector struct {
	IsKnown       bool                     `json:"is_known,omitempty"`
	Name          string                   `json:"name"`
	Objects       map[string]*ObjectRecord `json:"objects"`
	ResourceAreas []*ResourceArea          `json:"resource_areas,omitempty"`
}

// ObjectRecord describes a station, gate, abandoned ship or vault.
type ObjectRecord struct {
	Class             string  `json:"class"`
	Code              string  `json:"code"`
	HasBlueprints     bool    `json:"has_blueprints"`
	HasSignalleak     bool    `json:"has_signalleak"`
	HasWares          bool    `json:"has_wares"`
	IsActive          *bool   `json:"is_active,omitempty"`
	IsHeadquarter     bool    `json:"is_headquarter,omitempty"`
	IsWreck           bool    `json:"is_wreck,omitempty"`
	Macro             string  `json:"macro"`
	Owner             string  `json:"owner"`
	TargetID          string  `json:"target_id,omitempty"`
	TargetName        *string `json:"target_name,omitempty"`
	TargetSectorMacro string  `json:"target_sector_macro,omitempty"`
	TargetSectorName  *string `json:"target_sector_name,omitempty"`
	X                 float64 `json:"x"`
	Y                 float64 `json:"y"`
	Z                 float64 `json:"z"`
}

// ResourceArea is a mineable region declared inside a sector.
type ResourceArea struct {
	Resources map[string]*Resource `json:"resources"`
	X         int                  `json:"x"`
	Y         int                  `json:"y"`
	Z         int                  `json:"z"`
}

// Resource is the recharge and yield state of one ware in a resource area.
type Resource struct {
	RechargeCurrent int    `json:"recharge_current"`
	RechargeMax     int    `json:"recharge_max"`
	RechargeTime    int    `json:"recharge_time"`
	Yield           string `json:"yield,omitempty"`
}

// New creates an empty report.
func New() *Report {
	return &Report{Sectors: make(map[string]*Sector)}
}

// AddSector registers a sector. A macro seen twice keeps its first record.
func (r *Report) AddSector(macro, name string, known bool) *Sector {
	if s, ok := r.Sectors[macro]; ok {
		return s
	}
	s := &Sector{
		IsKnown: known,
		Name:    name,
		Objects: make(map[string]*ObjectRecord),
	}
	r.Sectors[macro] = s
	return s
}

// AddObject stores obj under its code in the given sector.
func (r *Report) AddObject(sectorMacro string, obj *ObjectRecord) error {
	s, ok := r.Sectors[sectorMacro]
	if !ok {
		return fmt.Errorf("unknown sector %q", sectorMacro)
	}
	if _, dup := s.Objects[obj.Code]; dup {
		return fmt.Errorf("%w: %q in sector %q", ErrDuplicateCode, obj.Code, sectorMacro)
	}
	s.Objects[obj.Code] = obj
	return nil
}

// Object returns the object with code in the given sector.
func (r *Report) Object(sectorMacro, code string) (*ObjectRecord, bool) {
	s, ok := r.Sectors[sectorMacro]
	if !ok {
		return nil, false
	}
	obj, ok := s.Objects[code]
	return obj, ok
}

// Objects calls fn for every object in every sector.
func (r *Report) Objects(fn func(sectorMacro string, obj *ObjectRecord)) {
	for macro, s := range r.Sectors {
		for _, obj := range s.Objects {
			fn(macro, obj)
		}
	}
}

// Counts returns the number of sectors and objects.
func (r *Report) Counts() (sectors, objects int) {
	for _, s := range r.Sectors {
		objects += len(s.Objects)
	}
	return len(r.Sectors), objects
}
