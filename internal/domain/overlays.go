package domain

// Overlays is the persisted composition payload attached to a story.
// The JSON shape is a persistence contract: readers must tolerate unknown
// fields, which encoding/json already does.
type Overlays struct {
	BackgroundColor      string        `json:"backgroundColor,omitempty"`
	BackgroundGradientID string        `json:"backgroundGradientId,omitempty"`
	Media                *MediaOverlay `json:"media,omitempty"`
	Texts                []TextOverlay `json:"texts,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MediaOverlay describes how the underlying image or video is transformed
// relative to its container. Position is a pixel offset from center.
type MediaOverlay struct {
	Type     StoryType `json:"type"`
	Position Position  `json:"position"`
	Scale    float64   `json:"scale"`
	Rotation float64   `json:"rotation"`
	Size     Size      `json:"size"`
}

// TextOverlay positions are percentages of the container so overlays stay
// anchored proportionally across container resizes.
type TextOverlay struct {
	Text            string   `json:"text"`
	Color           string   `json:"color"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	FontFamily      string   `json:"fontFamily,omitempty"`
	FontSize        float64  `json:"fontSize,omitempty"`
	Position        Position `json:"position"`
	Rotation        float64  `json:"rotation,omitempty"`
	Scale           float64  `json:"scale,omitempty"`
}
