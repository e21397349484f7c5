package main

import (
	"github.com/spf13/cobra"
)

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List stored companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		companies, err := env.dl.ListCompanies(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range companies {
			cmd.Printf("%-20s %-30s %-20s %s\n", c.ID, c.Name, c.Sector, c.Stage)
		}
		return nil
	},
}

var sectorsCmd = &cobra.Command{
	Use:   "sectors",
	Short: "List sectors with comparable data",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		sectors, err := env.dl.ListSectors(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range sectors {
			cmd.Println(s)
		}
		return nil
	},
}

var indicesCmd = &cobra.Command{
	Use:   "indices",
	Short: "List available market indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		indices, err := env.dl.ListIndices(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range indices {
			source, err := env.dl.GetIndexSource(cmd.Context(), name)
			if err != nil {
				return err
			}
			cmd.Printf("%-12s source: %s (retrieved %s)\n",
				name, source.Name, source.RetrievedAt.Format("2006-01-02"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(companiesCmd, sectorsCmd, indicesCmd)
}
