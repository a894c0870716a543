package delay

import (
	"fmt"
	"github.com/openziti/chunkpool/cmd/chunkpool/chunkpool"
	"github.com/spf13/cobra"
	"strconv"
	"time"
)

func init() {
	delayCmd.Flags().IntVarP(&overPct, "over", "o", 200, "Tabulate up to this percentage of capacity")
	chunkpool.RootCmd.AddCommand(delayCmd)
}

var delayCmd = &cobra.Command{
	Use:   "delay [capacity]",
	Short: "Print the allocation throttle curve for a capacity",
	Args:  cobra.MaximumNArgs(1),
	Run:   delay,
}
var overPct int

func delay(_ *cobra.Command, args []string) {
	p, err := chunkpool.Profile()
	if err != nil {
		panic(err)
	}
	capacity := p.Capacity
	if len(args) == 1 {
		if capacity, err = strconv.Atoi(args[0]); err != nil {
			panic(err)
		}
	}
	curve := p.Curve()
	limit := capacity * overPct / 100
	fmt.Printf("%-12s %-8s %s\n", "outstanding", "pct", "delay")
	for current := 0; current <= limit; current++ {
		pct := float64(current) / float64(capacity) * 100
		fmt.Printf("%-12d %-8.1f %v\n", current, pct, curve.Delay(current, capacity).Round(time.Millisecond))
	}
}
