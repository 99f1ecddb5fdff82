package types

// PageSnapshot is the rendered state of a tab captured for extraction.
type PageSnapshot struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// HTML is document.documentElement.outerHTML after scripts ran.
	HTML string `json:"html"`
	// Text is document.body.innerText, i.e. only what a visitor can see.
	Text string `json:"text"`
}

// Viewport is the visible area of a tab in CSS pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ScrollMetrics describes how far a tab is scrolled.
type ScrollMetrics struct {
	ScrollY      float64 `json:"scrollY"`
	InnerHeight  float64 `json:"innerHeight"`
	ScrollHeight float64 `json:"scrollHeight"`
}

// AtBottom reports whether the viewport reached the end of the document.
func (m ScrollMetrics) AtBottom() bool {
	return m.ScrollY+m.InnerHeight >= m.ScrollHeight-1
}
