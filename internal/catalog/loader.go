package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

const (
	CurriculumFile = "curriculum.yaml"
	UnitFile       = "unit.yaml"
	UnitsDir       = "units"
)

// Load reads a curriculum rooted at fsys. With a units manifest in
// curriculum.yaml the manifest order is used; otherwise every
// units/<dir>/unit.yaml is loaded in directory name order.
func Load(fsys fs.FS) (*Catalog, error) {
	cur, err := readCurriculum(fsys)
	if err != nil {
		return nil, err
	}

	var units []Unit
	if len(cur.Units) > 0 {
		units, err = readUnitsFromManifest(fsys, cur)
	} else {
		units, err = readUnitsFromScan(fsys)
	}
	if err != nil {
		return nil, err
	}
	return New(cur.Name, units)
}

func readCurriculum(fsys fs.FS) (Curriculum, error) {
	cur := Curriculum{Kind: CurriculumKind, SchemaVersion: SupportedSchemaVersion, Name: "curriculum"}
	b, err := fs.ReadFile(fsys, CurriculumFile)
	if errors.Is(err, fs.ErrNotExist) {
		return cur, nil
	}
	if err != nil {
		return cur, malformed(CurriculumFile, err)
	}
	if err := yaml.Unmarshal(b, &cur); err != nil {
		return cur, malformed(CurriculumFile, fmt.Errorf("parse: %w", err))
	}
	if err := cur.Validate(); err != nil {
		return cur, malformed(CurriculumFile, err)
	}
	return cur, nil
}

func readUnitsFromManifest(fsys fs.FS, cur Curriculum) ([]Unit, error) {
	units := make([]Unit, 0, len(cur.Units))
	for _, ref := range cur.Units {
		if ref.Enabled != nil && !*ref.Enabled {
			continue
		}
		dir := path.Clean(ref.Path)
		u, err := loadUnitFile(fsys, dir)
		if err != nil {
			return nil, err
		}
		if u.UnitID != ref.UnitID {
			return nil, malformed(path.Join(dir, UnitFile), fmt.Errorf("unit id mismatch: manifest=%s file=%s", ref.UnitID, u.UnitID))
		}
		units = append(units, u)
	}
	return units, nil
}

func readUnitsFromScan(fsys fs.FS) ([]Unit, error) {
	entries, err := fs.ReadDir(fsys, UnitsDir)
	if err != nil {
		return nil, malformed(UnitsDir, err)
	}
	units := make([]Unit, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := path.Join(UnitsDir, e.Name())
		if _, err := fs.Stat(fsys, path.Join(dir, UnitFile)); err != nil {
			continue
		}
		u, err := loadUnitFile(fsys, dir)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func loadUnitFile(fsys fs.FS, dir string) (Unit, error) {
	var u Unit
	p := path.Join(dir, UnitFile)
	b, err := fs.ReadFile(fsys, p)
	if err != nil {
		return u, malformed(p, err)
	}
	if err := yaml.Unmarshal(b, &u); err != nil {
		return u, malformed(p, fmt.Errorf("parse: %w", err))
	}
	if err := u.Validate(); err != nil {
		return u, &Error{Kind: ErrMalformed, UnitID: u.UnitID, Path: p, Err: err}
	}
	u.Dir = dir
	applyUnitDefaults(&u)
	return u, nil
}

func applyUnitDefaults(u *Unit) {
	if u.Package == "" {
		u.Package = "./" + u.Dir
	}
	if u.DependsOn == nil {
		u.DependsOn = []string{}
	}
}
