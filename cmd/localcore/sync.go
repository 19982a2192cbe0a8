package main

import (
	"fmt"
	"strings"

	"github.com/localcore/client/pkg/docsync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Manage the conflict-free document store",
}

func init() {
	syncCmd.PersistentFlags().String("node-id", "cli", "Node ID to attribute local writes to")

	syncInsertCmd.Flags().StringSlice("field", nil, "field=value pair, repeatable")
	syncUpdateCmd.Flags().String("field", "", "field name to update")
	syncQueryCmd.Flags().Int("limit", 50, "maximum documents to return")

	syncCmd.AddCommand(syncInsertCmd, syncUpdateCmd, syncDeleteCmd, syncGetCmd, syncQueryCmd, syncStatsCmd)
}

func openSync(cmd *cobra.Command) (*docsync.Engine, error) {
	nodeID, _ := cmd.Flags().GetString("node-id")
	dbPath := fmt.Sprintf("%s/%s.sync.db", dataDir(cmd), appID(cmd))
	return docsync.New(docsync.Config{DBPath: dbPath, NodeID: nodeID})
}

func parseFields(pairs []string) map[string]string {
	fields := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		fields[parts[0]] = parts[1]
	}
	return fields
}

var syncInsertCmd = &cobra.Command{
	Use:   "insert <collection>",
	Short: "Insert a new document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		pairs, _ := cmd.Flags().GetStringSlice("field")
		doc, err := e.Insert(args[0], parseFields(pairs))
		if err != nil {
			return err
		}
		fmt.Printf("✓ inserted %s\n", doc.ID)
		return nil
	},
}

var syncUpdateCmd = &cobra.Command{
	Use:   "update <collection> <id> <value>",
	Short: "Update a single field on a document",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		field, _ := cmd.Flags().GetString("field")
		if field == "" {
			return fmt.Errorf("--field is required")
		}

		doc, err := e.Update(args[0], args[1], field, args[2])
		if err != nil {
			return err
		}
		fmt.Printf("✓ updated %s (version %d)\n", doc.ID, doc.Version)
		return nil
	},
}

var syncDeleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Tombstone a document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Delete(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ deleted %s\n", args[1])
		return nil
	},
}

var syncGetCmd = &cobra.Command{
	Use:   "get <collection> <id>",
	Short: "Fetch a document by ID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		doc, err := e.Get(args[0], args[1])
		if err != nil {
			return err
		}
		for name, fv := range doc.Fields {
			fmt.Printf("%s = %s\n", name, fv.Value)
		}
		return nil
	},
}

var syncQueryCmd = &cobra.Command{
	Use:   "query <collection>",
	Short: "List documents in a collection, most recently updated first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		docs, err := e.Query(args[0], limit)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			fmt.Printf("%s (v%d, updated %s)\n", doc.ID, doc.Version, doc.UpdatedAt.Format("2006-01-02T15:04:05"))
		}
		return nil
	},
}

var syncStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show document store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openSync(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("documents:   %d\n", stats.TotalDocuments)
		fmt.Printf("operations:  %d\n", stats.TotalOperations)
		fmt.Printf("unsynced:    %d\n", stats.UnsyncedOps)
		fmt.Printf("collections: %d\n", stats.Collections)
		return nil
	},
}
