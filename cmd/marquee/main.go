// marquee is the digital signage device player: it loads a playlist
// document, plays it on the device display and exposes a local control
// API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Digital signage content player",
	Long: `Marquee plays a durationed playlist of widgets (images, video,
text, nested playlists) on the device display, with seeking, looping,
transitions and synchronized multi-device playback. A local HTTP API
exposes status, playback control and a live event feed.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
