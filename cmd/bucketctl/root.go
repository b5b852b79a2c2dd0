package main

import (
	"github.com/KOMKZ/go-yogan-bucket/di"
	"github.com/spf13/cobra"
)

// globalFlags 所有子命令共用
type globalFlags struct {
	configFile string
	configDir  string
	envPrefix  string
}

func (g *globalFlags) options(overrides map[string]interface{}) di.ConfigOptions {
	return di.ConfigOptions{
		ConfigPath: g.configDir,
		ConfigFile: g.configFile,
		EnvPrefix:  g.envPrefix,
		Overrides:  overrides,
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "bucketctl",
		Short:         "token bucket rate limiter",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&g.configFile, "config", "c", "", "配置文件路径")
	flags.StringVar(&g.configDir, "config-dir", "", "配置目录（读取 config.yaml 和 {env}.yaml）")
	flags.StringVar(&g.envPrefix, "env-prefix", "BUCKET", "环境变量前缀")

	root.AddCommand(
		newServeCmd(g),
		newValidateCmd(g),
		newSimulateCmd(g),
		newErrorsCmd(),
		newHashPasswordCmd(),
	)
	return root
}
