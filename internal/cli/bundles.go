package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newBundlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "管理组合包登记表",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出全部组合包",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			all := a.bundles.All()
			if len(all) == 0 {
				fmt.Println("没有组合包")
				return nil
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				b := all[k]
				fmt.Printf("%s（总价 %.2f，最近使用 %s）\n", k, b.TotalPrice, b.LastUsedAt)
				for _, c := range b.Components {
					fmt.Printf("  - %s（%s）%.2f\n", c.ResolvedName, c.ResolvedCategory, c.Price)
				}
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "组合包统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			st := a.bundles.GetStats()
			fmt.Printf("组合包：%d，组件总数：%d，平均组件数：%.1f\n",
				st.TotalBundles, st.TotalComponents, st.AvgComponents)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <身份键>",
		Short: "删除一个组合包",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.bundles.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("已删除 %s\n", args[0])
			return nil
		},
	})

	return cmd
}
