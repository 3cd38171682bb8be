package dto

// Shot is the slice of shot metadata the generation workflow reads.
type Shot struct {
	ID             string   `json:"id"`
	StoryboardURL  string   `json:"storyboard_url"`
	StyleURL       string   `json:"style_url"`
	BackgroundURLs []string `json:"background_urls"`
}

// ShotResponse wraps a single shot.
type ShotResponse struct {
	Shot Shot `json:"shot"`
}
