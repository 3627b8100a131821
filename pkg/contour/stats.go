package contour

// StructureStats summarizes one structure for downstream dose, DVH and QA
// consumers.
type StructureStats struct {
	Name       string
	Color      Color
	SliceCount int
	VolumeMm3  float64
	Slices     []int
}

// Statistics returns per-structure summary statistics keyed by name. Volume
// computation rasterizes each structure, so this is not free on large
// stores; an empty structure reports zero volume.
func (st *Store) Statistics() map[string]StructureStats {
	stats := make(map[string]StructureStats, len(st.order))
	for _, s := range st.order {
		vol, err := st.Volume(s.name)
		if err != nil {
			st.log.Warn("volume computation failed", "structure", s.name, "error", err)
			vol = 0
		}
		stats[s.name] = StructureStats{
			Name:       s.name,
			Color:      s.color,
			SliceCount: s.NumSlices(),
			VolumeMm3:  vol,
			Slices:     s.SliceIndices(),
		}
	}
	return stats
}
