package main

import (
	"fmt"
	"io"
	"nova/kernel/cpu"
	"nova/kernel/kmain"
	"nova/kernel/mm/vmm"
	"nova/kernel/space"
	"sort"

	"github.com/fogleman/gg"
)

const (
	imgWidth   = 1024
	margin     = 10
	labelWidth = 80
	rowHeight  = 28
	rowGap     = 8
	legendH    = 24
)

// region is a run of virtually contiguous mappings with identical rights
// and memory type.
type region struct {
	start, end uintptr
	perm       vmm.Perm
	attr       vmm.Attr
}

type row struct {
	label   string
	regions []region
}

// collectRegions walks root and coalesces adjacent mappings.
func collectRegions(root *vmm.Root) []region {
	var out []region
	root.Visit(func(m vmm.Mapping) bool {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.end == m.Virt && last.perm == m.Perm && last.attr == m.Attr {
				last.end += m.Size
				return true
			}
		}

		out = append(out, region{start: m.Virt, end: m.Virt + m.Size, perm: m.Perm, attr: m.Attr})
		return true
	})
	return out
}

// buildRows returns one row for the master root followed by one row for each
// CPU's local root in the kernel space.
func buildRows(sys *kmain.System) []row {
	rows := []row{{label: "master", regions: collectRegions(sys.Env.Master)}}
	for id := 0; id < sys.Config.CPUs; id++ {
		rows = append(rows, row{
			label:   fmt.Sprintf("cpu%d", id),
			regions: collectRegions(sys.Kernel().Local(cpu.ID(id))),
		})
	}
	return rows
}

// axis maps virtual addresses to x coordinates. Mapped regions are sparse
// across the address space so every interval between two region edges gets
// the same width.
type axis struct {
	edges []uintptr
	x0, w float64
}

func newAxis(rows []row, x0, w float64) axis {
	seen := make(map[uintptr]bool)
	var edges []uintptr
	for _, r := range rows {
		for _, reg := range r.regions {
			for _, edge := range []uintptr{reg.start, reg.end} {
				if !seen[edge] {
					seen[edge] = true
					edges = append(edges, edge)
				}
			}
		}
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i] < edges[j] })
	return axis{edges: edges, x0: x0, w: w}
}

func (a axis) x(addr uintptr) float64 {
	if len(a.edges) < 2 {
		return a.x0
	}

	i := sort.Search(len(a.edges), func(i int) bool { return a.edges[i] >= addr })
	return a.x0 + a.w*float64(i)/float64(len(a.edges)-1)
}

func attrColor(attr vmm.Attr) (float64, float64, float64) {
	switch attr {
	case vmm.AttrNormal:
		return 0.30, 0.69, 0.31
	case vmm.AttrDevice:
		return 0.90, 0.30, 0.24
	case vmm.AttrNormalNC:
		return 0.95, 0.61, 0.07
	default:
		return 0.5, 0.5, 0.5
	}
}

// drawLayout renders the translation rows on an ordinal axis and the user
// access overlay of hs on a linear axis below them.
func drawLayout(rows []row, hs *space.HostSpace) *gg.Context {
	var (
		height = 2*margin + (len(rows)+1)*(rowHeight+rowGap) + legendH
		plotW  = float64(imgWidth - labelWidth - 2*margin)
		x0     = float64(margin + labelWidth)
		ax     = newAxis(rows, x0, plotW)
		dc     = gg.NewContext(imgWidth, height)
	)

	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetLineWidth(1)

	y := float64(margin)
	for _, r := range rows {
		dc.SetRGB(0, 0, 0)
		dc.DrawString(r.label, margin, y+rowHeight/2+4)

		for _, reg := range r.regions {
			x1, x2 := ax.x(reg.start), ax.x(reg.end)
			dc.SetRGB(attrColor(reg.attr))
			dc.DrawRectangle(x1, y, x2-x1, rowHeight)
			dc.Fill()

			dc.SetRGB(0, 0, 0)
			dc.DrawRectangle(x1, y, x2-x1, rowHeight)
			dc.Stroke()
			if w, _ := dc.MeasureString(reg.perm.String()); w < x2-x1-4 {
				dc.DrawString(reg.perm.String(), x1+2, y+rowHeight/2+4)
			}
		}
		y += rowHeight + rowGap
	}

	// Overlay row, scaled linearly over [0, limit).
	dc.SetRGB(0, 0, 0)
	dc.DrawString("access", margin, y+rowHeight/2+4)
	dc.DrawRectangle(x0, y, plotW, rowHeight)
	dc.Stroke()
	if limit := float64(hs.Limit()); limit > 0 {
		for _, rng := range hs.Ranges() {
			x1 := x0 + plotW*float64(rng.Base)/limit
			x2 := x0 + plotW*float64(rng.End)/limit
			dc.SetRGB(0.25, 0.47, 0.85)
			dc.DrawRectangle(x1, y, x2-x1, rowHeight)
			dc.Fill()
		}
	}
	y += rowHeight + rowGap

	x := x0
	for _, attr := range []vmm.Attr{vmm.AttrNormal, vmm.AttrDevice, vmm.AttrNormalNC} {
		dc.SetRGB(attrColor(attr))
		dc.DrawRectangle(x, y, 12, 12)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawString(attr.String(), x+16, y+11)
		x += 120
	}

	return dc
}

// renderLayout writes a PNG image of the kernel space layout to w.
func renderLayout(sys *kmain.System, w io.Writer) error {
	return drawLayout(buildRows(sys), sys.Kernel()).EncodePNG(w)
}
