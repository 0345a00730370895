package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/goliatone/go-wizard"
)

var (
	doneColor  = color.New(color.FgHiGreen)
	partColor  = color.New(color.FgYellow)
	emptyColor = color.New(color.FgRed)
	dimColor   = color.New(color.Faint)
	idColor    = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
)

const barWidth = 20

// bar renders a fixed width progress bar followed by the percentage.
func bar(percent int) string {
	filled := percent * barWidth / 100
	text := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return percentColor(percent).Sprintf("%s %3d%%", text, percent)
}

func percentColor(percent int) *color.Color {
	switch {
	case percent >= 100:
		return doneColor
	case percent > 0:
		return partColor
	}
	return emptyColor
}

func celebrationColor(level wizard.CelebrationLevel) *color.Color {
	switch level {
	case wizard.CelebrationGrand:
		return color.New(color.FgHiMagenta, color.Bold)
	case wizard.CelebrationMajor:
		return color.New(color.FgHiYellow, color.Bold)
	}
	return color.New(color.FgHiGreen)
}

func statusColor(status wizard.ItemStatus) *color.Color {
	switch status {
	case wizard.StatusAssigned:
		return doneColor
	case wizard.StatusClassified:
		return partColor
	case wizard.StatusError:
		return emptyColor
	}
	return dimColor
}

func printPhotos(w io.Writer, photos []wizard.StagingPhoto) {
	if len(photos) == 0 {
		fmt.Fprintln(w, dimColor.Sprint("no staged photos"))
		return
	}
	for _, photo := range photos {
		fmt.Fprintf(w, "%s  %-24s %s", idColor.Sprint(shortID(photo.ID)), photo.FileName, statusColor(photo.Status).Sprintf("%-11s", photo.Status))
		switch {
		case photo.AssignedSlot != "":
			fmt.Fprintf(w, " → %s", photo.AssignedSlot)
		case photo.Error != "":
			fmt.Fprintf(w, " %s", emptyColor.Sprint(photo.Error))
		case len(photo.Suggestions) > 0:
			parts := make([]string, 0, len(photo.Suggestions))
			for _, s := range photo.Suggestions {
				parts = append(parts, fmt.Sprintf("%s %.0f%%", s.SlotID, s.Confidence))
			}
			fmt.Fprintf(w, " %s", dimColor.Sprint(strings.Join(parts, ", ")))
		}
		fmt.Fprintln(w)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
