package browser

// MaxWindow is the most page buttons shown at once.
const MaxWindow = 5

// WindowOf returns the page numbers to render as buttons for the given
// position. With five pages or fewer every page is listed. Otherwise the
// window starts two pages before current and is shifted left near the end
// so it always holds exactly MaxWindow pages.
func WindowOf(current, total int) []int {
	if total < 1 {
		total = 1
	}
	current = min(max(current, 1), total)

	if total <= MaxWindow {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	start := max(1, current-2)
	end := min(total, start+MaxWindow-1)
	if end-start+1 < MaxWindow {
		start = end - MaxWindow + 1
	}

	pages := make([]int, 0, MaxWindow)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages
}

// PrevDisabled reports whether the "previous" control is inactive.
func PrevDisabled(current int) bool {
	return current <= 1
}

// NextDisabled reports whether the "next" control is inactive.
func NextDisabled(current, total int) bool {
	return current >= total
}
