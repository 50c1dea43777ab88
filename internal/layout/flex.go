// internal/layout/flex.go
package layout

import (
	"math"

	"github.com/xkilldash9x/domtree/internal/style"
)

const epsilon = 0.001

// constraints describe the space a node is laid out in.
type constraints struct {
	width, height  float64 // exact border-box size, NaN when open
	availW, availH float64 // upper bound for the border box, NaN when unbounded
	ownerW, ownerH float64 // containing content box, for percentages
}

type cacheKey [6]uint64

func sizeBits(v float64) uint64 {
	if !isDefined(v) {
		return math.MaxUint64
	}
	return math.Float64bits(v)
}

func (c constraints) key() cacheKey {
	return cacheKey{
		sizeBits(c.width), sizeBits(c.height),
		sizeBits(c.availW), sizeBits(c.availH),
		sizeBits(c.ownerW), sizeBits(c.ownerH),
	}
}

// resolveEdges resolves margin, padding and border against the containing block width.
// autoMargin is indexed top, right, bottom, left.
func resolveEdges(ls style.LayoutStyle, ownerW float64) (margin, padding, border Edges, autoMargin [4]bool) {
	res := func(e style.Edges) Edges {
		return Edges{
			Top:    e.Top.ResolveOr(ownerW, 0),
			Right:  e.Right.ResolveOr(ownerW, 0),
			Bottom: e.Bottom.ResolveOr(ownerW, 0),
			Left:   e.Left.ResolveOr(ownerW, 0),
		}
	}
	margin, padding, border = res(ls.Margin), res(ls.Padding), res(ls.Border)
	autoMargin = [4]bool{ls.Margin.Top.IsAuto(), ls.Margin.Right.IsAuto(), ls.Margin.Bottom.IsAuto(), ls.Margin.Left.IsAuto()}
	return margin, padding, border, autoMargin
}

// boxSize turns a style dimension into a border-box size, or NaN when it does not resolve.
func boxSize(d style.Dimension, ref, pb float64, sizing style.BoxSizing) float64 {
	v, ok := d.Resolve(ref)
	if !ok {
		return undefined
	}
	if sizing == style.ContentBox {
		v += pb
	}
	return math.Max(v, pb)
}

func axisDims(ls style.LayoutStyle, a Axis) (size, lo, hi style.Dimension) {
	if a == Horizontal {
		return ls.Width, ls.MinWidth, ls.MaxWidth
	}
	return ls.Height, ls.MinHeight, ls.MaxHeight
}

type bounds struct {
	minW, maxW, minH, maxH float64
}

// layout sizes n's border box under c and, when perform is set, positions its
// descendants. Measure-only passes are memoised per Solve.
func (e *Engine) layout(n *node, c constraints, dir Direction, perform bool) (float64, float64) {
	if n.epoch != e.epoch {
		n.epoch = e.epoch
		clear(n.cache)
	}
	key := c.key()
	if !perform {
		if sz, ok := n.cache[key]; ok {
			return sz[0], sz[1]
		}
	}

	ls := n.style
	_, padding, border, _ := resolveEdges(ls, c.ownerW)
	pb := padding.Add(border)
	pbH, pbV := pb.Sum(Horizontal), pb.Sum(Vertical)

	b := bounds{
		minW: boxSize(ls.MinWidth, c.ownerW, pbH, ls.BoxSizing),
		maxW: boxSize(ls.MaxWidth, c.ownerW, pbH, ls.BoxSizing),
		minH: boxSize(ls.MinHeight, c.ownerH, pbV, ls.BoxSizing),
		maxH: boxSize(ls.MaxHeight, c.ownerH, pbV, ls.BoxSizing),
	}

	w, h := c.width, c.height
	if !isDefined(w) {
		w = boxSize(ls.Width, c.ownerW, pbH, ls.BoxSizing)
	}
	if !isDefined(h) {
		h = boxSize(ls.Height, c.ownerH, pbV, ls.BoxSizing)
	}
	if isDefined(w) {
		w = clampSize(w, b.minW, b.maxW, pbH)
	}
	if isDefined(h) {
		h = clampSize(h, b.minH, b.maxH, pbV)
	}

	switch {
	case n.measure != nil && len(n.children) == 0:
		if !isDefined(w) || !isDefined(h) {
			innerW, innerH := minus(w, pbH), minus(h, pbV)
			if !isDefined(innerW) {
				innerW = minus(c.availW, pbH)
			}
			if !isDefined(innerH) {
				innerH = minus(c.availH, pbV)
			}
			mw, mh := n.measure(innerW, innerH)
			if !isDefined(w) {
				w = clampSize(mw+pbH, b.minW, b.maxW, pbH)
			}
			if !isDefined(h) {
				h = clampSize(mh+pbV, b.minH, b.maxH, pbV)
			}
		}
	case len(n.children) == 0:
		if !isDefined(w) {
			w = clampSize(pbH, b.minW, b.maxW, pbH)
		}
		if !isDefined(h) {
			h = clampSize(pbV, b.minH, b.maxH, pbV)
		}
	default:
		w, h = e.layoutFlex(n, w, h, c, padding, border, b, dir, perform)
	}

	if perform {
		e.laid++
		n.box.Width, n.box.Height = w, h
		n.box.Padding, n.box.Border = padding, border
		n.box.Direction = dir
	} else {
		if n.cache == nil {
			n.cache = make(map[cacheKey][2]float64)
		}
		n.cache[key] = [2]float64{w, h}
	}
	return w, h
}

// -- Flexbox --

type flexItem struct {
	n          *node
	margin     Edges
	autoMargin [4]bool

	pbMain, pbCross    float64
	minMain, maxMain   float64
	minCross, maxCross float64
	defMain, defCross  float64
	grow, shrink       float64
	align              style.Align

	base, hypo        float64
	main, cross       float64
	mainPos, crossPos float64
	violation         float64
	frozen, stretched bool
}

// autoStart reports an auto margin on the left (horizontal) or top (vertical) side.
func (it *flexItem) autoStart(a Axis) bool {
	if a == Horizontal {
		return it.autoMargin[3]
	}
	return it.autoMargin[0]
}

func (it *flexItem) autoEnd(a Axis) bool {
	if a == Horizontal {
		return it.autoMargin[1]
	}
	return it.autoMargin[2]
}

func (it *flexItem) canStretch(cross Axis) bool {
	return it.align == style.AlignStretch && !isDefined(it.defCross) && !it.autoStart(cross) && !it.autoEnd(cross)
}

type flexLine struct {
	items  []*flexItem
	cross  float64
	offset float64
}

// usedMain is the outer main size of the line including gaps.
func (l *flexLine) usedMain(axis Axis, gap float64, hypothetical bool) float64 {
	used := 0.0
	for i, it := range l.items {
		if i > 0 {
			used += gap
		}
		size := it.main
		if hypothetical {
			size = it.hypo
		}
		used += size + it.margin.Sum(axis)
	}
	return used
}

// layoutFlex runs the flex algorithm for a container. Block containers are laid out
// as a non-flexing column with stretched items.
func (e *Engine) layoutFlex(n *node, w, h float64, c constraints, padding, border Edges, b bounds, dir Direction, perform bool) (float64, float64) {
	ls := n.style
	fd, wrap, justify, alignItems := ls.FlexDirection, ls.FlexWrap, ls.JustifyContent, ls.AlignItems
	block := ls.Display == style.DisplayBlock
	if block {
		fd, wrap, justify, alignItems = style.FlexDirectionColumn, style.FlexNoWrap, style.JustifyFlexStart, style.AlignStretch
	}

	mainAxis := Vertical
	if fd.IsRow() {
		mainAxis = Horizontal
	}
	crossAxis := mainAxis.Other()
	reverse := fd.IsReverse()
	if mainAxis == Horizontal && dir == RTL {
		reverse = !reverse
	}
	crossFromEnd := wrap == style.FlexWrapReverse
	if crossAxis == Horizontal && dir == RTL {
		crossFromEnd = !crossFromEnd
	}
	singleLine := wrap == style.FlexNoWrap

	pb := padding.Add(border)
	pbH, pbV := pb.Sum(Horizontal), pb.Sum(Vertical)
	pbMain, pbCross := pick(mainAxis, pbH, pbV)
	innerW, innerH := minus(w, pbH), minus(h, pbV)
	availInnerW, availInnerH := innerW, innerH
	if !isDefined(availInnerW) {
		availInnerW = minus(c.availW, pbH)
	}
	if !isDefined(availInnerH) {
		availInnerH = minus(c.availH, pbV)
	}
	innerMain, innerCross := pick(mainAxis, innerW, innerH)
	availMain, availCross := pick(mainAxis, availInnerW, availInnerH)
	minMain, minCross := pick(mainAxis, b.minW, b.minH)
	maxMain, maxCross := pick(mainAxis, b.maxW, b.maxH)

	rowGap, colGap := ls.RowGap.ResolveOr(innerH, 0), ls.ColumnGap.ResolveOr(innerW, 0)
	mainGap, crossGap := pick(mainAxis, colGap, rowGap)

	// Step 1: collect in-flow items.
	var items []*flexItem
	var absolutes []*node
	for _, ch := range n.children {
		cn := e.mustNode(ch)
		switch {
		case cn.style.Display == style.DisplayNone:
			if perform {
				e.hide(cn)
			}
			continue
		case cn.style.Position == style.PositionAbsolute:
			absolutes = append(absolutes, cn)
			continue
		}

		cls := cn.style
		it := &flexItem{n: cn, grow: cls.FlexGrow, shrink: cls.FlexShrink, align: cls.AlignSelf}
		var ipad, ibord Edges
		it.margin, ipad, ibord, it.autoMargin = resolveEdges(cls, innerW)
		ipb := ipad.Add(ibord)
		it.pbMain, it.pbCross = pick(mainAxis, ipb.Sum(Horizontal), ipb.Sum(Vertical))

		sizeM, loM, hiM := axisDims(cls, mainAxis)
		sizeC, loC, hiC := axisDims(cls, crossAxis)
		it.defMain = boxSize(sizeM, innerMain, it.pbMain, cls.BoxSizing)
		it.minMain = boxSize(loM, innerMain, it.pbMain, cls.BoxSizing)
		it.maxMain = boxSize(hiM, innerMain, it.pbMain, cls.BoxSizing)
		it.defCross = boxSize(sizeC, innerCross, it.pbCross, cls.BoxSizing)
		it.minCross = boxSize(loC, innerCross, it.pbCross, cls.BoxSizing)
		it.maxCross = boxSize(hiC, innerCross, it.pbCross, cls.BoxSizing)
		if it.align == style.AlignAuto {
			it.align = alignItems
		}
		if block {
			it.grow, it.shrink = 0, 0
		}
		items = append(items, it)
	}

	// Step 2: flex base sizes.
	for _, it := range items {
		basis := undefined
		if !block && !it.n.style.FlexBasis.IsAuto() {
			basis = boxSize(it.n.style.FlexBasis, innerMain, it.pbMain, it.n.style.BoxSizing)
		}
		if !isDefined(basis) {
			basis = it.defMain
		}
		if !isDefined(basis) {
			cross := it.defCross
			if !isDefined(cross) && singleLine && it.canStretch(crossAxis) && isDefined(innerCross) {
				cross = clampSize(innerCross-it.margin.Sum(crossAxis), it.minCross, it.maxCross, it.pbCross)
			}
			cw, chh := unpick(mainAxis, undefined, cross)
			aw, ah := unpick(mainAxis, minus(availMain, it.margin.Sum(mainAxis)), minus(availCross, it.margin.Sum(crossAxis)))
			mw, mh := e.layout(it.n, constraints{width: cw, height: chh, availW: aw, availH: ah, ownerW: innerW, ownerH: innerH}, dir, false)
			basis, _ = pick(mainAxis, mw, mh)
		}
		it.base = basis
		it.hypo = clampSize(basis, it.minMain, it.maxMain, it.pbMain)
	}

	// Step 3: lines.
	lineLimit := innerMain
	if !isDefined(lineLimit) {
		lineLimit = availMain
	}
	lines := collectFlexLines(items, wrap, lineLimit, mainGap, mainAxis)

	// Step 4: flexible lengths.
	for _, line := range lines {
		space := innerMain
		if !isDefined(space) && isDefined(availMain) && line.usedMain(mainAxis, mainGap, true) > availMain {
			space = availMain
		}
		resolveFlexibleLengths(line, space, mainGap, mainAxis)
	}

	if !isDefined(innerMain) {
		longest := 0.0
		for _, line := range lines {
			longest = math.Max(longest, line.usedMain(mainAxis, mainGap, false))
		}
		innerMain = clampSize(longest+pbMain, minMain, maxMain, pbMain) - pbMain
	}

	// Step 5: cross sizes.
	for _, line := range lines {
		for _, it := range line.items {
			mc := it.margin.Sum(crossAxis)
			switch {
			case isDefined(it.defCross):
				it.cross = clampSize(it.defCross, it.minCross, it.maxCross, it.pbCross)
			case singleLine && it.canStretch(crossAxis) && isDefined(innerCross):
				it.cross = clampSize(innerCross-mc, it.minCross, it.maxCross, it.pbCross)
				it.stretched = true
			default:
				cw, chh := unpick(mainAxis, it.main, undefined)
				aw, ah := unpick(mainAxis, it.main, minus(availCross, mc))
				mw, mh := e.layout(it.n, constraints{width: cw, height: chh, availW: aw, availH: ah, ownerW: innerW, ownerH: innerH}, dir, false)
				_, it.cross = pick(mainAxis, mw, mh)
			}
			line.cross = math.Max(line.cross, it.cross+mc)
		}
	}
	if singleLine && isDefined(innerCross) {
		lines[0].cross = innerCross
	}

	totalCross := crossGap * float64(len(lines)-1)
	for _, line := range lines {
		totalCross += line.cross
	}
	if !isDefined(innerCross) {
		innerCross = clampSize(totalCross+pbCross, minCross, maxCross, pbCross) - pbCross
		if singleLine {
			lines[0].cross = innerCross
		}
	}

	// Step 6: align-content and stretch.
	var lineStart, lineSpacing float64
	if !singleLine {
		free := innerCross - totalCross
		if ls.AlignContent == style.AlignStretch && free > 0 {
			extra := free / float64(len(lines))
			for _, line := range lines {
				line.cross += extra
			}
		} else {
			lineStart, lineSpacing = alignmentOffsets(alignContentDistribution(ls.AlignContent), len(lines), free)
		}
	}
	offset := lineStart
	for _, line := range lines {
		line.offset = offset
		offset += line.cross + lineSpacing + crossGap
		for _, it := range line.items {
			if !it.stretched && it.canStretch(crossAxis) {
				it.cross = clampSize(line.cross-it.margin.Sum(crossAxis), it.minCross, it.maxCross, it.pbCross)
				it.stretched = true
			}
		}
	}

	// Step 7: main-axis and cross-axis positions.
	pbMainStart, pbCrossStart := pb.Start(mainAxis), pb.Start(crossAxis)
	for _, line := range lines {
		free := innerMain - line.usedMain(mainAxis, mainGap, false)
		autos := 0
		for _, it := range line.items {
			if it.autoStart(mainAxis) {
				autos++
			}
			if it.autoEnd(mainAxis) {
				autos++
			}
		}
		var start, spacing, autoShare float64
		if free > 0 && autos > 0 {
			autoShare = free / float64(autos)
		} else {
			start, spacing = alignmentOffsets(justifyDistribution(justify), len(line.items), free)
		}

		pos := start
		for _, it := range line.items {
			ms, me := it.margin.Start(mainAxis), it.margin.End(mainAxis)
			if it.autoStart(mainAxis) {
				ms += autoShare
			}
			if it.autoEnd(mainAxis) {
				me += autoShare
			}
			if reverse {
				it.mainPos = pbMainStart + innerMain - pos - me - it.main
			} else {
				it.mainPos = pbMainStart + pos + ms
			}
			pos += ms + it.main + me + spacing + mainGap
		}

		physLine := line.offset
		if crossFromEnd {
			physLine = innerCross - line.offset - line.cross
		}
		for _, it := range line.items {
			mcs := it.margin.Start(crossAxis)
			free := line.cross - it.cross - it.margin.Sum(crossAxis)
			as, ae := it.autoStart(crossAxis), it.autoEnd(crossAxis)
			var off float64
			switch {
			case as && ae:
				off = free / 2
			case as:
				off = free
			case ae:
				off = 0
			default:
				switch it.align {
				case style.AlignFlexEnd:
					off = free
				case style.AlignCenter:
					off = free / 2
				}
				if crossFromEnd {
					off = free - off
				}
			}
			it.crossPos = pbCrossStart + physLine + mcs + off
		}
	}

	w, h = unpick(mainAxis, innerMain+pbMain, innerCross+pbCross)

	if perform {
		for _, line := range lines {
			for _, it := range line.items {
				cw, chh := unpick(mainAxis, it.main, it.cross)
				e.layout(it.n, constraints{width: cw, height: chh, availW: cw, availH: chh, ownerW: innerW, ownerH: innerH}, dir, true)
				x, y := unpick(mainAxis, it.mainPos, it.crossPos)
				dx, dy := relativeOffset(it.n.style, innerW, innerH)
				it.n.box.X, it.n.box.Y = x+dx, y+dy
				it.n.box.Margin = it.margin
			}
		}
		for _, ab := range absolutes {
			e.layoutAbsolute(ab, w, h, padding, border, dir)
		}
	}
	return w, h
}

// collectFlexLines breaks items into lines no longer than limit.
func collectFlexLines(items []*flexItem, wrap style.FlexWrap, limit, gap float64, axis Axis) []*flexLine {
	if wrap == style.FlexNoWrap || !isDefined(limit) {
		return []*flexLine{{items: items}}
	}
	var lines []*flexLine
	cur := &flexLine{}
	used := 0.0
	for _, it := range items {
		outer := it.hypo + it.margin.Sum(axis)
		if len(cur.items) > 0 && used+gap+outer > limit+epsilon {
			lines = append(lines, cur)
			cur = &flexLine{}
			used = 0
		}
		if len(cur.items) > 0 {
			used += gap
		}
		cur.items = append(cur.items, it)
		used += outer
	}
	return append(lines, cur)
}

// resolveFlexibleLengths distributes free space by grow or scaled shrink factors,
// freezing items that hit their min/max bounds until the distribution is stable.
func resolveFlexibleLengths(line *flexLine, space, gap float64, axis Axis) {
	items := line.items
	for _, it := range items {
		it.main = it.hypo
		it.frozen = false
	}
	if !isDefined(space) || len(items) == 0 {
		return
	}

	gaps := gap * float64(len(items)-1)
	initialFree := space - line.usedMain(axis, gap, true)
	if math.Abs(initialFree) < epsilon {
		return
	}
	growing := initialFree > 0
	for _, it := range items {
		if (growing && (it.grow == 0 || it.base > it.hypo)) || (!growing && (it.shrink == 0 || it.base < it.hypo)) {
			it.frozen = true
		}
	}

	for range len(items) + 1 {
		free := space - gaps
		var sumGrow, sumShrink, scaledShrink float64
		unfrozen := 0
		for _, it := range items {
			free -= it.margin.Sum(axis)
			if it.frozen {
				free -= it.main
				continue
			}
			free -= it.base
			unfrozen++
			sumGrow += it.grow
			sumShrink += it.shrink
			scaledShrink += it.shrink * it.base
		}
		if unfrozen == 0 {
			return
		}
		factors := sumShrink
		if growing {
			factors = sumGrow
		}
		if factors < 1 {
			if f := initialFree * factors; math.Abs(f) < math.Abs(free) {
				free = f
			}
		}

		totalViolation := 0.0
		for _, it := range items {
			if it.frozen {
				continue
			}
			target := it.base
			switch {
			case growing && sumGrow > 0:
				target += free * it.grow / sumGrow
			case !growing && scaledShrink > 0:
				target += free * (it.shrink * it.base) / scaledShrink
			}
			clamped := clampSize(target, it.minMain, it.maxMain, it.pbMain)
			it.violation = clamped - target
			it.main = clamped
			totalViolation += it.violation
		}

		switch {
		case math.Abs(totalViolation) < epsilon:
			return
		case totalViolation > 0:
			for _, it := range items {
				if !it.frozen && it.violation > 0 {
					it.frozen = true
				}
			}
		default:
			for _, it := range items {
				if !it.frozen && it.violation < 0 {
					it.frozen = true
				}
			}
		}
	}
}

// layoutAbsolute places an out-of-flow child against the container's padding box.
func (e *Engine) layoutAbsolute(n *node, w, h float64, padding, border Edges, dir Direction) {
	ls := n.style
	padW, padH := w-border.Sum(Horizontal), h-border.Sum(Vertical)
	margin, ipad, ibord, _ := resolveEdges(ls, padW)
	ipb := ipad.Add(ibord)

	left, hasL := ls.Inset.Left.Resolve(padW)
	right, hasR := ls.Inset.Right.Resolve(padW)
	top, hasT := ls.Inset.Top.Resolve(padH)
	bottom, hasB := ls.Inset.Bottom.Resolve(padH)

	cw := boxSize(ls.Width, padW, ipb.Sum(Horizontal), ls.BoxSizing)
	if !isDefined(cw) && hasL && hasR {
		cw = math.Max(ipb.Sum(Horizontal), padW-left-right-margin.Sum(Horizontal))
	}
	ch := boxSize(ls.Height, padH, ipb.Sum(Vertical), ls.BoxSizing)
	if !isDefined(ch) && hasT && hasB {
		ch = math.Max(ipb.Sum(Vertical), padH-top-bottom-margin.Sum(Vertical))
	}

	bw, bh := e.layout(n, constraints{
		width: cw, height: ch,
		availW: minus(padW, margin.Sum(Horizontal)), availH: minus(padH, margin.Sum(Vertical)),
		ownerW: padW, ownerH: padH,
	}, dir, true)

	var x, y float64
	switch {
	case hasL:
		x = border.Left + left + margin.Left
	case hasR:
		x = w - border.Right - right - margin.Right - bw
	case dir == RTL:
		x = w - border.Right - padding.Right - margin.Right - bw
	default:
		x = border.Left + padding.Left + margin.Left
	}
	switch {
	case hasT:
		y = border.Top + top + margin.Top
	case hasB:
		y = h - border.Bottom - bottom - margin.Bottom - bh
	default:
		y = border.Top + padding.Top + margin.Top
	}
	n.box.X, n.box.Y = x, y
	n.box.Margin = margin
}

// relativeOffset applies top/left (or bottom/right) insets of a relatively positioned item.
func relativeOffset(ls style.LayoutStyle, refW, refH float64) (dx, dy float64) {
	if v, ok := ls.Inset.Left.Resolve(refW); ok {
		dx = v
	} else if v, ok := ls.Inset.Right.Resolve(refW); ok {
		dx = -v
	}
	if v, ok := ls.Inset.Top.Resolve(refH); ok {
		dy = v
	} else if v, ok := ls.Inset.Bottom.Resolve(refH); ok {
		dy = -v
	}
	return dx, dy
}

// hide zeroes the geometry of a display:none subtree.
func (e *Engine) hide(n *node) {
	n.box = Box{Direction: n.box.Direction}
	for _, c := range n.children {
		e.hide(e.mustNode(c))
	}
}

// -- Distribution of free space --

type distribution int

const (
	distStart distribution = iota
	distEnd
	distCenter
	distBetween
	distAround
	distEvenly
)

func justifyDistribution(j style.JustifyContent) distribution {
	switch j {
	case style.JustifyFlexEnd:
		return distEnd
	case style.JustifyCenter:
		return distCenter
	case style.JustifySpaceBetween:
		return distBetween
	case style.JustifySpaceAround:
		return distAround
	case style.JustifySpaceEvenly:
		return distEvenly
	default:
		return distStart
	}
}

func alignContentDistribution(a style.Align) distribution {
	switch a {
	case style.AlignFlexEnd:
		return distEnd
	case style.AlignCenter:
		return distCenter
	case style.AlignSpaceBetween:
		return distBetween
	case style.AlignSpaceAround:
		return distAround
	case style.AlignSpaceEvenly:
		return distEvenly
	default:
		return distStart
	}
}

// alignmentOffsets is shared by justify-content and align-content.
func alignmentOffsets(d distribution, count int, free float64) (start, spacing float64) {
	if free <= epsilon {
		return 0, 0
	}
	switch d {
	case distEnd:
		start = free
	case distCenter:
		start = free / 2.0
	case distBetween:
		if count > 1 {
			spacing = free / float64(count-1)
		}
	case distAround:
		if count > 0 {
			spacing = free / float64(count)
			start = spacing / 2.0
		} else {
			start = free / 2.0
		}
	case distEvenly:
		if count > 0 {
			spacing = free / float64(count+1)
			start = spacing
		} else {
			start = free / 2.0
		}
	}
	return start, spacing
}
