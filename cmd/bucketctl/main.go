// bucketctl 令牌桶限流服务的命令行入口
//
//	bucketctl serve -c configs/config.yaml
//	bucketctl validate -c configs/config.yaml
//	bucketctl simulate -c configs/config.yaml -r /auth.AuthService/Login --rate 20 -d 10s
//	bucketctl errors
//	echo 'secret' | bucketctl hash-password
//
// @title                      go-yogan-bucket admin API
// @version                    1.0
// @description                令牌桶限流服务管理接口
// @BasePath                   /admin/v1
// @securityDefinitions.basic  BasicAuth
// @security                   BasicAuth
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
