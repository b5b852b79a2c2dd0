package application

import (
	"fmt"
	"time"

	"github.com/KOMKZ/go-yogan-bucket/di"
	"github.com/spf13/cobra"
)

// CLIApplication BaseApplication + cobra，命令执行完即关闭
type CLIApplication struct {
	*BaseApplication
	rootCmd *cobra.Command
}

func NewCLI(opts di.ConfigOptions, rootCmd *cobra.Command) (*CLIApplication, error) {
	base, err := NewBase(opts)
	if err != nil {
		return nil, err
	}
	return &CLIApplication{BaseApplication: base, rootCmd: rootCmd}, nil
}

// Execute Setup、执行命令，无论成功与否都会关闭组件
func (c *CLIApplication) Execute(args ...string) error {
	if err := c.Setup(); err != nil {
		_ = c.Shutdown(5 * time.Second)
		return fmt.Errorf("setup failed: %w", err)
	}
	c.setState(StateRunning)

	if args != nil {
		c.rootCmd.SetArgs(args)
	}
	err := c.rootCmd.ExecuteContext(c.Context())

	shutdownErr := c.Shutdown(5 * time.Second)
	if err != nil {
		return err
	}
	return shutdownErr
}

func (c *CLIApplication) RootCmd() *cobra.Command {
	return c.rootCmd
}

func (c *CLIApplication) AddCommand(cmds ...*cobra.Command) *CLIApplication {
	c.rootCmd.AddCommand(cmds...)
	return c
}
