package format

import "fmt"

// Strategy is the algorithmic path used to convert between two categories.
type Strategy string

const (
	// StrategyDirect re-encodes within the same category.
	StrategyDirect Strategy = "direct"
	// StrategyCreateVideo wraps a still image into a motion container.
	StrategyCreateVideo Strategy = "create_video"
	// StrategyVisualize renders audio as a waveform image or video.
	StrategyVisualize Strategy = "visualize"
	// StrategyExtractFrame samples a still image from video or document pages.
	StrategyExtractFrame Strategy = "extract_frame"
	// StrategyExtractAudio demuxes the audio track from a video.
	StrategyExtractAudio Strategy = "extract_audio"
	// StrategyCombine wraps an image as a single document page.
	StrategyCombine Strategy = "combine"
)

// IncompatibleError indicates that no conversion strategy exists for a
// category pair.
type IncompatibleError struct {
	From Category
	To   Category
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("incompatible formats: no strategy for %s to %s", e.From, e.To)
}

// ResolveStrategy maps a category pair to its conversion strategy. The
// mapping is deterministic and total over the supported table; every other
// pair fails with IncompatibleError. Identical-category pairs map
// explicitly to StrategyDirect.
func ResolveStrategy(from, to Category) (Strategy, error) {
	switch from {
	case CategoryImage:
		switch to {
		case CategoryImage:
			return StrategyDirect, nil
		case CategoryVideo:
			return StrategyCreateVideo, nil
		case CategoryDocument:
			return StrategyCombine, nil
		}
	case CategoryAudio:
		switch to {
		case CategoryAudio:
			return StrategyDirect, nil
		case CategoryImage, CategoryVideo:
			return StrategyVisualize, nil
		}
	case CategoryVideo:
		switch to {
		case CategoryVideo:
			return StrategyDirect, nil
		case CategoryImage:
			return StrategyExtractFrame, nil
		case CategoryAudio:
			return StrategyExtractAudio, nil
		}
	case CategoryDocument:
		switch to {
		case CategoryDocument:
			return StrategyDirect, nil
		case CategoryImage:
			return StrategyExtractFrame, nil
		}
	}
	return "", &IncompatibleError{From: from, To: to}
}
