package main

import (
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ceyewan/beacon/client"
	"github.com/ceyewan/beacon/clog"
	"github.com/ceyewan/beacon/config"
)

var version = "0.1.0"

type rootFlags struct {
	meta       string
	appID      string
	cluster    string
	transport  string
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:          "beacon",
		Short:        "Config service client",
		Long:         `Discover config services and fetch or watch namespaces from the command line`,
		Version:      version,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.meta, "meta", "", "Meta server address, comma separated")
	pf.StringVar(&f.appID, "app-id", "", "Application id")
	pf.StringVar(&f.cluster, "cluster", "", "Cluster name (default: default)")
	pf.StringVar(&f.transport, "transport", "", "Transport: "+strings.Join(client.Transports(), "|"))
	pf.StringVarP(&f.configFile, "config", "c", "", "Config file, the beacon key is used")
	pf.StringVar(&f.logLevel, "log-level", "warn", "Log level: debug|info|warn|error")

	root.AddCommand(newServicesCmd(f), newGetCmd(f), newWatchCmd(f))
	return root
}

// newClient 按 配置文件 < 环境变量 < 命令行 的优先级构建客户端
func (f *rootFlags) newClient(cmd *cobra.Command) (*client.Client, error) {
	logger, err := clog.New(&clog.Config{Level: f.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return nil, err
	}
	logger = logger.With(clog.String("client_id", uuid.NewString()))

	loader, err := config.New(&config.Config{File: f.configFile}, config.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := loader.Load(cmd.Context()); err != nil {
		return nil, err
	}

	cfg := &client.Config{}
	if err := loader.UnmarshalKey("beacon", cfg); err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("meta") {
		cfg.MetaAddress = f.meta
	}
	if flags.Changed("app-id") {
		cfg.AppID = f.appID
	}
	if flags.Changed("cluster") {
		cfg.Cluster = f.cluster
	}
	if flags.Changed("transport") {
		cfg.Transport = f.transport
	}

	// 配置文件与 BEACON_ 环境变量同时作为静态配置服务地址的来源
	return client.New(cfg, client.WithLogger(logger), client.WithProperties(loader))
}
