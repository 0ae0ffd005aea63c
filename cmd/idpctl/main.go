// Command idpctl is the operator CLI for the placement control plane:
// catalog inspection, provider health toggles, experiment/flag CRUD, and
// inbound-request WAL replay. Grounded on dedup-migrate's cobra root +
// subcommand-factory shape, adapted from a migration tool to a thin REST
// client plus a local WAL utility.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cellforge/idp-controlplane/internal/durability"
	"github.com/cellforge/idp-controlplane/internal/sticky"
	"github.com/spf13/cobra"
)

var (
	serverAddr string
	httpClient = &http.Client{Timeout: 10 * time.Second}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "idpctl",
		Short: "Operator CLI for the cell placement control plane",
	}
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "control plane base URL")

	rootCmd.AddCommand(productsCmd())
	rootCmd.AddCommand(experimentsCmd())
	rootCmd.AddCommand(flagsCmd())
	rootCmd.AddCommand(providersCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(walCmd())
	rootCmd.AddCommand(stickyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func productsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Inspect the product catalog"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered products",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/products")
		},
	})
	return cmd
}

func experimentsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "experiments", Short: "Manage placement experiments"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/experiments")
		},
	})

	var specFile string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Create or replace an experiment from a JSON spec file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(specFile)
			if err != nil {
				return fmt.Errorf("read spec file: %w", err)
			}
			return postAndPrint("/api/experiments", data)
		},
	}
	setCmd.Flags().StringVarP(&specFile, "file", "f", "", "path to experiment spec JSON")
	_ = setCmd.MarkFlagRequired("file")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an experiment by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteAndPrint("/api/experiments/" + args[0])
		},
	})

	return cmd
}

func flagsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "flags", Short: "Manage feature flags"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feature flags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/flags")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [name] [true|false]",
		Short: "Set a feature flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[1] == "true"
			body, _ := json.Marshal(map[string]bool{"enabled": enabled})
			return putAndPrint("/api/flags/"+args[0], body)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a feature flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return deleteAndPrint("/api/flags/" + args[0])
		},
	})

	return cmd
}

func providersCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "providers", Short: "Inspect and administer provider health"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List provider health/breaker state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/providers/health")
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [provider] [true|false]",
		Short: "Mark a provider healthy or unhealthy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			healthy := args[1] == "true"
			body, _ := json.Marshal(map[string]bool{"healthy": healthy})
			return putAndPrint("/api/providers/"+args[0]+"/health", body)
		},
	})

	return cmd
}

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show the running placement analytics summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getAndPrint("/api/analytics")
		},
	}
}

func walCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wal", Short: "Inspect the local request WAL"}

	cmd.AddCommand(&cobra.Command{
		Use:   "replay [path]",
		Short: "Replay a WAL segment, printing each recovered entry as its RFC3339 timestamp and raw body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := durability.Replay(args[0])
			if err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			for _, e := range entries {
				fmt.Printf("%s %s\n", e.Timestamp.Format(time.RFC3339), string(e.Body))
			}
			fmt.Fprintf(os.Stderr, "%d entries replayed\n", len(entries))
			return nil
		},
	})

	return cmd
}

func stickyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sticky", Short: "Maintain the Postgres sticky-placement backend directly"}

	var olderThan time.Duration
	cleanupCmd := &cobra.Command{
		Use:   "cleanup [postgres-conn-string]",
		Short: "Delete sticky_placements rows older than --older-than",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := sticky.NewPostgresStore(args[0])
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer store.Close()

			deleted, err := store.CleanupExpired(context.Background(), olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d row(s) older than %s\n", deleted, olderThan)
			return nil
		},
	}
	cleanupCmd.Flags().DurationVar(&olderThan, "older-than", 90*24*time.Hour, "prune rows created before now minus this duration")
	cmd.AddCommand(cleanupCmd)

	return cmd
}

func getAndPrint(path string) error {
	resp, err := httpClient.Get(serverAddr + path)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func postAndPrint(path string, body []byte) error {
	resp, err := httpClient.Post(serverAddr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func putAndPrint(path string, body []byte) error {
	req, err := http.NewRequest(http.MethodPut, serverAddr+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func deleteAndPrint(path string) error {
	req, err := http.NewRequest(http.MethodDelete, serverAddr+path, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "server returned %s: %s\n", resp.Status, body)
		os.Exit(1)
	}
	if len(body) == 0 {
		fmt.Println(resp.Status)
		return nil
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
