package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fixkme/robustimer/framework/app"
	"github.com/fixkme/robustimer/framework/config"
	"github.com/fixkme/robustimer/framework/core"
	"github.com/fixkme/robustimer/mlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// 编译时通过ldflags设置
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "timerd",
		Short:         "Run persistent drift-corrected timers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("timerd %s\n", version)
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the timers declared in the config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if err := config.LoadConfig(cfgPath, config.LoadFromEnv); err != nil {
				return err
			}
			conf := config.Config
			if len(conf.AppVersion) == 0 {
				conf.AppVersion = version
			}
			closeLog, err := core.InitLog(&conf.LogConfig)
			if err != nil {
				return err
			}
			defer closeLog()
			mlog.Debugf("timerd config: %s", conf.JsonFormat())

			reg := prometheus.NewRegistry()
			mods := []app.Module{core.NewTimerModule("timer", conf, reg)}
			if len(conf.MetricsAddr) > 0 {
				mods = append(mods, core.NewMetricsModule("metrics", conf.MetricsAddr, reg))
			}
			return app.New().Run(context.Background(), mods...)
		},
	}
	cmd.Flags().StringP("config", "c", "", "config file (.json, .yaml)")
	return cmd
}
