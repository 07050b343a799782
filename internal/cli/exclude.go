package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExcludeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "管理排除清单",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "列出被排除的订单",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()

			ids := a.excluded.List()
			if len(ids) == 0 {
				fmt.Println("排除清单为空")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			fmt.Printf("共 %d 个\n", len(ids))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <订单号>",
		Short: "把订单加入排除清单",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.excluded.Exclude(args[0]); err != nil {
				return err
			}
			fmt.Printf("已排除 %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <订单号>",
		Short: "把订单移出排除清单",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flagConfig, flagVerbose)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.excluded.Include(args[0]); err != nil {
				return err
			}
			fmt.Printf("已恢复 %s\n", args[0])
			return nil
		},
	})

	return cmd
}
