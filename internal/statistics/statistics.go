package statistics

import (
	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
)

const levels = 256

// GetBrightnessHistogram counts samples per brightness level for each
// channel and for the luma.
func GetBrightnessHistogram(img imatrix.Image) domain.BrightnessHistogram {
	hist := domain.BrightnessHistogram{
		Red:   make([]int, levels),
		Green: make([]int, levels),
		Blue:  make([]int, levels),
		Gray:  make([]int, levels),
	}

	for y := 0; y < img.Height; y++ {
		for _, p := range img.Matrix[y] {
			hist.Red[p[0]]++
			hist.Green[p[1]]++
			hist.Blue[p[2]]++
			hist.Gray[imatrix.Gray(p)]++
		}
	}

	return hist
}

func GetStatistics(img imatrix.Image) domain.ImageStatistics {
	return domain.ImageStatistics{
		Brightness: GetBrightnessHistogram(img),
	}
}
