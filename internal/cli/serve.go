package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ordersync/internal/channel"
	"ordersync/internal/pipeline"
	"ordersync/internal/server"
	"ordersync/internal/store"
	"ordersync/internal/util"
)

func newServeCommand() *cobra.Command {
	var ordersPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动远端控制 HTTP 服务",
		Long:  "常驻服务：POST /trigger 触发同步，GET /prompts 列出待答提问，POST /prompts/:id/reply 代答。",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			queue := channel.NewQueue()
			p, err := a.newPipeline(queue, false)
			if err != nil {
				return err
			}

			syncFn := func(ctx context.Context) (*pipeline.Result, error) {
				lock, err := util.AcquireLock(a.lockPath())
				if err != nil {
					return nil, err
				}
				defer func() { _ = lock.Release() }()

				orders, err := store.ReadOrders(ordersPath)
				if err != nil {
					return nil, fmt.Errorf("failed to load orders: %w", err)
				}
				return p.Run(ctx, orders)
			}

			srv := server.New(a.cfg, queue, a.runLog, syncFn, a.log)
			return srv.Run()
		},
	}
	cmd.Flags().StringVarP(&ordersPath, "orders", "o", "orders.json", "触发同步时读取的订单导出文件")
	return cmd
}
