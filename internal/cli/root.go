package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

// NewRootCommand 构建命令树
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "ordersync",
		Short:        "订单台账同步工具",
		Long:         "把抓取到的订单经身份解析、组合包拆解与状态归并后，增量同步进 Excel 台账。",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "config.toml", "配置文件路径")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "输出调试日志")

	root.AddCommand(
		newSyncCommand(),
		newRematchCommand(),
		newExcludeCommand(),
		newBundlesCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute CLI 入口
func Execute() error {
	return NewRootCommand().Execute()
}
