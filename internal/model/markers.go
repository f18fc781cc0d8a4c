package model

// Marker attributes written onto document elements.
const (
	AttrDetected     = "data-pricelens-detected"
	AttrConverted    = "data-pricelens-converted"
	AttrOriginalText = "data-pricelens-original-text"
	AttrIgnore       = "data-pricelens-ignore"
)
