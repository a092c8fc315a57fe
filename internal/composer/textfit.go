package composer

// MeasureFunc reports the rendered height of a text block at a font size.
// The rendering side supplies it; the engine treats it as a black box.
type MeasureFunc func(text string, fontSize float64) (height float64)

const (
	maxFitFontSize = 96.0
	minFitFontSize = 14.0
)

// FitFontSize binary-searches downward from the maximum size until the
// rendered block fits the visible box height, floored at a readable
// minimum. Used for text-mode stories, whose single overlay is full-bleed.
func FitFontSize(text string, boxHeight float64, measure MeasureFunc) float64 {
	if measure == nil || text == "" || boxHeight <= 0 {
		return maxFitFontSize
	}
	if measure(text, maxFitFontSize) <= boxHeight {
		return maxFitFontSize
	}

	lo, hi := minFitFontSize, maxFitFontSize
	for hi-lo > 0.5 {
		mid := (lo + hi) / 2
		if measure(text, mid) <= boxHeight {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
