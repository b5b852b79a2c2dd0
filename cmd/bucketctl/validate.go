package main

import (
	"fmt"
	"sort"

	"github.com/KOMKZ/go-yogan-bucket/application"
	"github.com/KOMKZ/go-yogan-bucket/config"
	"github.com/KOMKZ/go-yogan-bucket/errcode"
	"github.com/KOMKZ/go-yogan-bucket/limiter"
	"github.com/KOMKZ/go-yogan-bucket/validator"
	"github.com/spf13/cobra"
)

func newValidateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "校验 limiter 和 server 配置",
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, err := config.NewLoaderBuilder().
				WithConfigPath(g.configDir).
				WithConfigFile(g.configFile).
				WithEnvPrefix(g.envPrefix).
				Build()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			limiterCfg := limiter.DefaultConfig()
			if err := loader.UnmarshalKey("limiter", &limiterCfg); err != nil {
				return err
			}
			serverCfg := application.DefaultServerConfig()
			if err := loader.UnmarshalKey("server", &serverCfg); err != nil {
				return err
			}
			serverCfg.ApplyDefaults()

			failed := report(cmd, "limiter", validator.Validate(&limiterCfg, limiter.ErrInvalidConfig))
			failed = report(cmd, "server", validator.Validate(serverCfg, application.ErrInvalidServerConfig)) || failed
			if failed {
				return fmt.Errorf("config is invalid")
			}

			names := make([]string, 0, len(limiterCfg.Resources))
			for name := range limiterCfg.Resources {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintf(out, "✅ config ok (store_type=%s, enabled=%t)\n", limiterCfg.StoreType, limiterCfg.Enabled)
			for _, name := range names {
				rc := limiterCfg.Resources[name]
				fmt.Fprintf(out, "  %s: %d bandwidth(s)\n", name, len(rc.Bandwidths))
			}
			return nil
		},
	}
}

// report 打印字段级错误，返回是否失败
func report(cmd *cobra.Command, section string, err error) bool {
	if err == nil {
		return false
	}
	out := cmd.OutOrStdout()
	le, ok := errcode.FromError(err)
	if !ok {
		fmt.Fprintf(out, "❌ %s: %v\n", section, err)
		return true
	}
	fields, _ := le.Data()["fields"].(map[string]string)
	if len(fields) == 0 {
		fmt.Fprintf(out, "❌ %s: %v\n", section, le.Unwrap())
		return true
	}
	for _, name := range validator.Fields(err) {
		fmt.Fprintf(out, "❌ %s.%s: %s\n", section, name, fields[name])
	}
	return true
}
