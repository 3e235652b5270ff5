// beacon 是配置服务客户端的命令行工具，用于排查服务发现与配置拉取。
//
//	beacon services --meta http://meta:8080 --app-id demo
//	beacon get application --app-id demo
//	beacon watch application db --transport grpc
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
