package main

import (
	"fmt"
	"os"

	"github.com/localcore/client/pkg/vault"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import vault entries from a YAML file",
	Long: `Import reads a YAML file describing a batch of vault entries and
stores each one, sealed under the vault's master key.

Example file:

  entries:
    - key: api-token
      namespace: work
      value: secret-value
      expiry: 24h
      exportable: true`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringP("file", "f", "", "YAML file to import (required)")
	importCmd.Flags().String("master-key", "", "Master key used to seal imported values (required)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("master-key")
}

// importSpec is the YAML shape accepted by the import command.
type importSpec struct {
	Entries []importEntry `yaml:"entries"`
}

type importEntry struct {
	Key        string `yaml:"key"`
	Namespace  string `yaml:"namespace"`
	Value      string `yaml:"value"`
	Expiry     string `yaml:"expiry,omitempty"`
	Biometric  bool   `yaml:"biometric,omitempty"`
	Exportable bool   `yaml:"exportable,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	masterKey, _ := cmd.Flags().GetString("master-key")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	var spec importSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to parse YAML: %v", err)
	}

	dbPath := fmt.Sprintf("%s/%s.vault.db", dataDir(cmd), appID(cmd))
	v, err := vault.New(vault.Config{AppID: appID(cmd), DBPath: dbPath, MasterKey: masterKey})
	if err != nil {
		return fmt.Errorf("failed to open vault: %v", err)
	}
	defer v.Close()

	for _, entry := range spec.Entries {
		if entry.Key == "" || entry.Value == "" {
			return fmt.Errorf("entry missing required key/value: %+v", entry)
		}
		if err := v.Put(entry.Namespace, entry.Key, entry.Value, entry.Expiry, entry.Biometric, entry.Exportable); err != nil {
			return fmt.Errorf("failed to import %s: %v", entry.Key, err)
		}
		fmt.Printf("✓ imported %s\n", entry.Key)
	}

	return nil
}
