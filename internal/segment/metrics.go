package segment

// Metrics summarizes the size distribution of a split result. Used for
// post-split logging to spot over- and under-segmentation.
type Metrics struct {
	Count   int
	AvgSize float64
	MinSize int
	MaxSize int

	// Paragraphs under 100 chars pay disproportionate per-call overhead;
	// paragraphs over 2000 chars stress context and retry cost.
	OverSegmented      int
	UnderSegmented     int
	OverSegmentedRate  float64
	UnderSegmentedRate float64

	// Share of paragraphs in the 500-1500 char band, the sweet spot for a
	// single provider call.
	MediumRangeShare float64
}

func Measure(paragraphs []string) Metrics {
	var m Metrics
	m.Count = len(paragraphs)
	if m.Count == 0 {
		return m
	}

	total := 0
	medium := 0
	m.MinSize = len(paragraphs[0])
	for _, p := range paragraphs {
		size := len(p)
		total += size
		if size < m.MinSize {
			m.MinSize = size
		}
		if size > m.MaxSize {
			m.MaxSize = size
		}
		if size < 100 {
			m.OverSegmented++
		}
		if size > 2000 {
			m.UnderSegmented++
		}
		if size >= 500 && size < 1500 {
			medium++
		}
	}

	count := float64(m.Count)
	m.AvgSize = float64(total) / count
	m.OverSegmentedRate = float64(m.OverSegmented) / count * 100
	m.UnderSegmentedRate = float64(m.UnderSegmented) / count * 100
	m.MediumRangeShare = float64(medium) / count * 100
	return m
}
