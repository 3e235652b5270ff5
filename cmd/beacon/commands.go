package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/beacon/model"
)

func newServicesCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "Discover and print config service instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := f.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			// 客户端启动时已同步完成一次服务发现
			services, err := c.Services(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range services {
				fmt.Fprintf(out, "%s\t%s\n", s.InstanceID, s.Address)
			}
			return nil
		},
	}
}

func newGetCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get [namespace]",
		Short: "Print the configuration of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			cfg, err := c.GetConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func newWatchCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [namespace...]",
		Short: "Long poll namespaces and print every change until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			defs := make([]model.NotificationDefinition, 0, len(args))
			for _, ns := range args {
				defs = append(defs, model.NotificationDefinition{NamespaceName: ns, NotificationID: model.InitialNotificationID})
			}

			for ctx.Err() == nil {
				resp, err := c.Watch(ctx, defs)
				if err != nil {
					if ctx.Err() != nil {
						break
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "watch failed: %v\n", err)
					if !sleep(ctx, time.Second) {
						break
					}
					continue
				}
				if resp.Status == model.StatusNotModified {
					continue
				}
				for _, n := range resp.Notifications {
					updateDefinition(defs, n)
					fmt.Fprintf(out, "# %s notificationId=%d\n", n.NamespaceName, n.NotificationID)
					cfg, err := c.GetConfig(ctx, n.NamespaceName)
					if err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "get %s failed: %v\n", n.NamespaceName, err)
						continue
					}
					printConfig(out, cfg)
				}
			}
			return nil
		},
	}
}

func updateDefinition(defs []model.NotificationDefinition, n model.NotificationResult) {
	for i := range defs {
		if defs[i].NamespaceName == n.NamespaceName {
			defs[i].NotificationID = n.NotificationID
		}
	}
}

func printConfig(w io.Writer, cfg *model.ConfigResult) {
	fmt.Fprintf(w, "# %s releaseKey=%s\n", cfg.NamespaceName, cfg.ReleaseKey)
	for _, k := range cfg.Keys() {
		v, _ := cfg.Get(k)
		fmt.Fprintf(w, "%s=%s\n", k, v)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
