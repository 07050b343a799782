package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ordersync/internal/channel"
	"ordersync/internal/store"
	"ordersync/internal/util"
)

func newSyncCommand() *cobra.Command {
	var ordersPath string
	var autoMode bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "执行一次台账同步",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			lock, err := util.AcquireLock(a.lockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			orders, err := store.ReadOrders(ordersPath)
			if err != nil {
				return err
			}

			ch := channel.NewConsole()
			p, err := a.newPipeline(ch, autoMode)
			if err != nil {
				return err
			}

			result, err := p.Run(context.Background(), orders)
			if err != nil {
				return err
			}
			fmt.Printf("运行 %s：新增 %d，重写 %d，跳过 %d，损坏 %d，失败 %d\n",
				result.RunID, result.Summary.Appended, result.Summary.Replaced,
				result.Summary.Skipped, result.Summary.Corrupt, result.Summary.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&ordersPath, "orders", "o", "orders.json", "订单导出文件路径")
	cmd.Flags().BoolVar(&autoMode, "auto", false, "无人值守模式：不发提问，一律走确定性兜底")
	return cmd
}

func newRematchCommand() *cobra.Command {
	var ordersPath string

	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "绕过缓存重新解析订单文件里的全部身份",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			lock, err := util.AcquireLock(a.lockPath())
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			orders, err := store.ReadOrders(ordersPath)
			if err != nil {
				return err
			}

			ch := channel.NewConsole()
			p, err := a.newPipeline(ch, false)
			if err != nil {
				return err
			}

			count, err := p.Rematch(context.Background(), orders)
			if err != nil {
				return err
			}
			fmt.Printf("已重新解析 %d 个身份\n", count)
			return nil
		},
	}
	cmd.Flags().StringVarP(&ordersPath, "orders", "o", "orders.json", "订单导出文件路径")
	return cmd
}
