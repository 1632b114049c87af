package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdev-ltda/orderflow/internal/config"
	"github.com/gdev-ltda/orderflow/internal/dlq"
	natsclient "github.com/gdev-ltda/orderflow/internal/messaging/nats"
)

var dlqLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect the email dead-letter queue",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print dead letters as JSON without consuming them",
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue, client, err := openDLQ()
		if err != nil {
			return err
		}
		defer client.Close()

		messages, err := queue.List(cmd.Context(), dlqLimit)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(messages)
	},
}

var dlqStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of retained dead letters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue, client, err := openDLQ()
		if err != nil {
			return err
		}
		defer client.Close()

		count, err := queue.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d dead letters\n", count)
		return nil
	},
}

var dlqPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every dead letter",
	RunE: func(cmd *cobra.Command, _ []string) error {
		queue, client, err := openDLQ()
		if err != nil {
			return err
		}
		defer client.Close()

		if err := queue.Purge(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("dead-letter queue purged")
		return nil
	},
}

func init() {
	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 100, "maximum dead letters to print")
	dlqCmd.AddCommand(dlqListCmd, dlqStatsCmd, dlqPurgeCmd)
	rootCmd.AddCommand(dlqCmd)
}

func openDLQ() (*dlq.JetStreamQueue, *natsclient.JetStreamClient, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = cfg.NATS.URL
	natsCfg.Name = cfg.NATS.Name + "-dlq"
	client, err := natsclient.NewJetStreamClient(natsCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect nats: %w", err)
	}

	return dlq.NewJetStreamQueue(client.JetStream(), natsclient.OrderEmailsDLQStream.Name), client, nil
}
