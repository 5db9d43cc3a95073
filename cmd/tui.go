package cmd

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
)

// showDistributionChart renders perConsumer as a bar chart for a brief
// window, then closes. It never blocks scale's exit on a keypress: the
// chart is a visual echo of the per-consumer counts scale already
// printed, not an interactive dashboard.
func showDistributionChart(partitions int, perConsumer []int) {
	if err := ui.Init(); err != nil {
		// No terminal available (e.g. output piped in CI); the text
		// report printed by reportDistribution already covers this run.
		return
	}
	defer ui.Close()

	labels := make([]string, len(perConsumer))
	data := make([]float64, len(perConsumer))
	for i, n := range perConsumer {
		labels[i] = fmt.Sprintf("c%d", i)
		data[i] = float64(n)
	}

	bc := widgets.NewBarChart()
	bc.Title = fmt.Sprintf(" partitions=%d load distribution ", partitions)
	bc.Data = data
	bc.Labels = labels
	bc.BarWidth = 6
	bc.BarGap = 2
	bc.SetRect(0, 0, len(perConsumer)*8+4, 14)

	ui.Render(bc)

	select {
	case e := <-ui.PollEvents():
		if e.ID == "q" || e.ID == "<C-c>" {
			return
		}
	case <-time.After(2 * time.Second):
	}
}
