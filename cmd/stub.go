package cmd

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/backendstub"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

var (
	stubAddr  string
	stubSteps int
)

var stubCmd = &cobra.Command{
	Use:         "stub",
	Short:       "Serve a local stand-in for the depth backend",
	Annotations: map[string]string{skipArchive: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := Cfg.Stub
		if cmd.Flags().Changed("addr") {
			sc.Addr = stubAddr
		}
		if cmd.Flags().Changed("steps") {
			sc.Steps = stubSteps
		}

		if Cfg.Log.Mode == "release" || Cfg.Log.Mode == "quiet" {
			gin.SetMode(gin.ReleaseMode)
		}

		srv, err := backendstub.New(sc, utils.Logger.Named("stub"))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "🧪 Stub backend on http://%s/api (Ctrl+C to stop)\n", sc.Addr)
		return srv.Run(cmd.Context())
	},
}

func init() {
	stubCmd.Flags().StringVar(&stubAddr, "addr", "127.0.0.1:5000", "Listen address")
	stubCmd.Flags().IntVar(&stubSteps, "steps", 10, "Progress frames emitted per diffusion job")
	rootCmd.AddCommand(stubCmd)
}
