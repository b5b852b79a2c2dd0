package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/KOMKZ/go-yogan-bucket/auth"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newHashPasswordCmd() *cobra.Command {
	var (
		cost       int
		skipPolicy bool
	)
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "生成管理接口用户的 bcrypt 哈希（不传参数时从标准输入读取）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			svc := auth.NewPasswordService(auth.DefaultConfig().Policy, cost)
			if !skipPolicy {
				if err := svc.ValidatePassword(password); err != nil {
					return err
				}
			}
			hash, err := svc.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "不检查密码强度")
	return cmd
}
