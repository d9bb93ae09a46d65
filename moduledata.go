package dmf2mod

// buildPhase tracks the three-phase commit every ModuleData must follow:
// allocate the pattern matrix, then channel metadata, then pattern storage,
// with reads forbidden until all three have run.
type buildPhase int

const (
	phaseEmpty buildPhase = iota
	phaseMatrixAllocated
	phaseChannelsAllocated
	phasePatternsAllocated
)

func (p buildPhase) mustBeAtLeast(want buildPhase) {
	if p < want {
		panic("moduledata: read attempted before allocation phases completed")
	}
}

// CORData is the channel -> order -> row storage layout used by DMF: every channel owns its own pattern-id space, and a pattern holds
// exactly one channel's worth of rows.
type CORData[R any] struct {
	NumChannels        int
	NumOrders          int
	NumRowsPerPattern  int
	ChannelEffectCols  []int // per-channel metadata: effect-column count (1-4)
	PatternMatrix      [][]int // [channel][order] -> pattern id
	patterns           [][][]R // [channel][pattern id][row]
	patternNames       map[[2]int]string // (channel, pattern id) -> name
	phase              buildPhase
}

func NewCORData[R any]() *CORData[R] {
	return &CORData[R]{patternNames: make(map[[2]int]string)}
}

// AllocatePatternMatrix is phase 1: fixes the channel/order grid shape.
func (d *CORData[R]) AllocatePatternMatrix(numChannels, numOrders int) {
	d.NumChannels = numChannels
	d.NumOrders = numOrders
	d.PatternMatrix = make([][]int, numChannels)
	for c := range d.PatternMatrix {
		d.PatternMatrix[c] = make([]int, numOrders)
	}
	d.phase = phaseMatrixAllocated
}

// AllocateChannels is phase 2: records per-channel metadata.
func (d *CORData[R]) AllocateChannels(effectCols []int) {
	d.phase.mustBeAtLeast(phaseMatrixAllocated)
	d.ChannelEffectCols = append([]int(nil), effectCols...)
	d.phase = phaseChannelsAllocated
}

// numPatternsPerChannel counts the patterns actually used per channel:
// num_patterns[c] = 1 + max(pattern_matrix[c]).
func (d *CORData[R]) numPatternsPerChannel() []int {
	counts := make([]int, d.NumChannels)
	for c := 0; c < d.NumChannels; c++ {
		max := 0
		for _, id := range d.PatternMatrix[c] {
			if id > max {
				max = id
			}
		}
		counts[c] = max + 1
	}
	return counts
}

// AllocatePatterns is phase 3: sizes the dense per-channel pattern storage.
// After this call reads are permitted and no further allocation may occur.
func (d *CORData[R]) AllocatePatterns(numRowsPerPattern int) {
	d.phase.mustBeAtLeast(phaseChannelsAllocated)
	d.NumRowsPerPattern = numRowsPerPattern
	counts := d.numPatternsPerChannel()
	d.patterns = make([][][]R, d.NumChannels)
	for c, n := range counts {
		d.patterns[c] = make([][]R, n)
		for p := 0; p < n; p++ {
			d.patterns[c][p] = make([]R, numRowsPerPattern)
		}
	}
	d.phase = phasePatternsAllocated
}

func (d *CORData[R]) SetRow(channel, patternID, row int, r R) {
	d.phase.mustBeAtLeast(phasePatternsAllocated)
	d.patterns[channel][patternID][row] = r
}

func (d *CORData[R]) Row(channel, patternID, row int) R {
	d.phase.mustBeAtLeast(phasePatternsAllocated)
	return d.patterns[channel][patternID][row]
}

// RowAt resolves (channel, order, row) through the pattern matrix.
func (d *CORData[R]) RowAt(channel, order, row int) R {
	patternID := d.PatternMatrix[channel][order]
	return d.Row(channel, patternID, row)
}

func (d *CORData[R]) SetPatternName(channel, patternID int, name string) {
	d.patternNames[[2]int{channel, patternID}] = name
}

func (d *CORData[R]) PatternName(channel, patternID int) string {
	return d.patternNames[[2]int{channel, patternID}]
}

func (d *CORData[R]) NumPatterns(channel int) int { return len(d.patterns[channel]) }

// ORCData is the order -> row -> channel storage layout used by MOD: one pattern table is shared by every channel.
type ORCData[R any] struct {
	NumChannels       int
	NumOrders         int
	NumRowsPerPattern int
	PatternMatrix     []int // [order] -> pattern id
	patterns          [][]R // [pattern id][row*NumChannels+channel]
	phase             buildPhase
}

func NewORCData[R any]() *ORCData[R] { return &ORCData[R]{} }

func (d *ORCData[R]) AllocatePatternMatrix(numOrders int) {
	d.NumOrders = numOrders
	d.PatternMatrix = make([]int, numOrders)
	d.phase = phaseMatrixAllocated
}

func (d *ORCData[R]) AllocateChannels(numChannels int) {
	d.phase.mustBeAtLeast(phaseMatrixAllocated)
	d.NumChannels = numChannels
	d.phase = phaseChannelsAllocated
}

// numPatterns counts the patterns actually used across the order list:
// num_patterns = 1 + max(pattern_matrix).
func (d *ORCData[R]) numPatterns() int {
	max := 0
	for _, id := range d.PatternMatrix {
		if id > max {
			max = id
		}
	}
	return max + 1
}

func (d *ORCData[R]) AllocatePatterns(numRowsPerPattern int) {
	d.phase.mustBeAtLeast(phaseChannelsAllocated)
	d.NumRowsPerPattern = numRowsPerPattern
	n := d.numPatterns()
	d.patterns = make([][]R, n)
	for p := 0; p < n; p++ {
		d.patterns[p] = make([]R, numRowsPerPattern*d.NumChannels)
	}
	d.phase = phasePatternsAllocated
}

func (d *ORCData[R]) SetRow(patternID, row, channel int, r R) {
	d.phase.mustBeAtLeast(phasePatternsAllocated)
	d.patterns[patternID][row*d.NumChannels+channel] = r
}

func (d *ORCData[R]) Row(patternID, row, channel int) R {
	d.phase.mustBeAtLeast(phasePatternsAllocated)
	return d.patterns[patternID][row*d.NumChannels+channel]
}

func (d *ORCData[R]) RowAt(order, row, channel int) R {
	return d.Row(d.PatternMatrix[order], row, channel)
}

func (d *ORCData[R]) NumPatterns() int { return len(d.patterns) }
