package main

import (
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/paperqa/pkg/pipeline"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

var stageIcons = map[string]string{
	pipeline.StageFetching:   "🌐",
	pipeline.StageLoading:    "📄",
	pipeline.StageNotes:      "📝",
	pipeline.StageIndexing:   "💾",
	pipeline.StageRetrieving: "🔍",
	pipeline.StageAnswering:  "🤖",
}

// describe updates the spinner text as pipeline stages start.
func describe(spinner *progressbar.ProgressBar) func(string) {
	return func(stage string) {
		spinner.Describe(color.CyanString("%s %s...", stageIcons[stage], stage))
	}
}
