package main

import (
	"fmt"
	"os"

	"github.com/localcore/client/pkg/vault"
	"github.com/spf13/cobra"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the encrypted key/value vault",
}

func init() {
	vaultCmd.PersistentFlags().String("namespace", "", "Vault namespace (default if empty)")
	vaultCmd.PersistentFlags().String("master-key", "", "Master key used to seal/open vault values (required)")

	vaultPutCmd.Flags().String("expiry", "", "Expiry shorthand, e.g. 24h, 7d, 2w")
	vaultPutCmd.Flags().Bool("biometric", false, "Require biometric confirmation to read this entry")
	vaultPutCmd.Flags().Bool("exportable", false, "Allow this entry to be exported")
	vaultGetCmd.Flags().Bool("biometric-ok", false, "Confirm biometric authentication was already performed")

	vaultCmd.AddCommand(vaultPutCmd, vaultGetCmd, vaultDeleteCmd, vaultListCmd, vaultNamespacesCmd,
		vaultWipeCmd, vaultWipeAllCmd, vaultExportCmd, vaultStatsCmd)
}

func openVault(cmd *cobra.Command) (*vault.Engine, string, error) {
	masterKey, _ := cmd.Flags().GetString("master-key")
	if masterKey == "" {
		return nil, "", fmt.Errorf("--master-key is required")
	}
	namespace, _ := cmd.Flags().GetString("namespace")

	dbPath := fmt.Sprintf("%s/%s.vault.db", dataDir(cmd), appID(cmd))
	v, err := vault.New(vault.Config{AppID: appID(cmd), DBPath: dbPath, MasterKey: masterKey})
	if err != nil {
		return nil, "", fmt.Errorf("open vault: %w", err)
	}
	return v, namespace, nil
}

var vaultPutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Store an encrypted value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		expiry, _ := cmd.Flags().GetString("expiry")
		biometric, _ := cmd.Flags().GetBool("biometric")
		exportable, _ := cmd.Flags().GetBool("exportable")

		if err := v.Put(namespace, args[0], args[1], expiry, biometric, exportable); err != nil {
			return err
		}
		fmt.Printf("✓ stored %s\n", args[0])
		return nil
	},
}

var vaultGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Retrieve and decrypt a value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		biometricOK, _ := cmd.Flags().GetBool("biometric-ok")
		value, err := v.Get(namespace, args[0], biometricOK)
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var vaultDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		existed, err := v.Delete(namespace, args[0])
		if err != nil {
			return err
		}
		if existed {
			fmt.Printf("✓ deleted %s\n", args[0])
		} else {
			fmt.Printf("%s was not present\n", args[0])
		}
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keys in a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		keys, err := v.ListKeys(namespace)
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var vaultNamespacesCmd = &cobra.Command{
	Use:   "namespaces",
	Short: "List every namespace with at least one entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		namespaces, err := v.ListNamespaces()
		if err != nil {
			return err
		}
		for _, ns := range namespaces {
			fmt.Println(ns)
		}
		return nil
	},
}

var vaultWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every entry in a namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		if err := v.WipeNamespace(namespace); err != nil {
			return err
		}
		fmt.Printf("✓ wiped namespace %q\n", namespace)
		return nil
	},
}

var vaultWipeAllCmd = &cobra.Command{
	Use:   "wipe-all",
	Short: "Delete every entry in the vault, across all namespaces",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		if err := v.WipeAll(); err != nil {
			return err
		}
		fmt.Println("✓ wiped entire vault")
		return nil
	},
}

var vaultExportCmd = &cobra.Command{
	Use:   "export <key>",
	Short: "Export a portable, still-encrypted envelope for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, namespace, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		env, err := v.Export(namespace, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%+v\n", env)
		return nil
	},
}

var vaultStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vault statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _, err := openVault(cmd)
		if err != nil {
			return err
		}
		defer v.Close()

		stats, err := v.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("entries:    %d\n", stats.TotalEntries)
		fmt.Printf("namespaces: %d\n", stats.TotalNamespaces)
		fmt.Printf("expired:    %d\n", stats.ExpiredEntries)
		fmt.Printf("bytes:      %d\n", stats.StorageBytes)
		return nil
	},
}
