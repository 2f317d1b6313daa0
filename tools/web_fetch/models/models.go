package models

// Link is an anchor element read from the rendered document.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Result is the rendered state of one page.
type Result struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	HTML     string `json:"html"`
	Links    []Link `json:"links"`
	RenderMS int    `json:"render_ms"`
}
