package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/openshift-hyperfleet/kartograph-sub002/internal/db/bunx"
	"github.com/openshift-hyperfleet/kartograph-sub002/internal/repository"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Outbox operator commands",
	Long:  `Commands for inspecting and requeuing quarantined outbox entries.`,
}

var outboxQuarantinedCmd = &cobra.Command{
	Use:   "quarantined",
	Short: "List quarantined entries",
	Long:  `Lists outbox entries whose retries are exhausted and that block their aggregate until requeued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		repo := repository.NewBunOutboxRepository(db)
		entries, err := repo.ListQuarantined(context.Background())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			log.Printf("No quarantined entries")
			return nil
		}
		for _, e := range entries {
			lastError := ""
			if e.LastError != nil {
				lastError = *e.LastError
			}
			fmt.Printf("%s  %-22s  %s/%s  attempts=%d  %s\n",
				e.ID, e.EventType, e.AggregateType, e.AggregateID, e.RetryCount, lastError)
		}
		return nil
	},
}

var outboxRequeueID string

var outboxRequeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Requeue a quarantined entry",
	Long:  `Clears an entry's failure state so the worker picks it up again, unblocking its aggregate.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		repo := repository.NewBunOutboxRepository(db)
		if err := repo.Requeue(context.Background(), outboxRequeueID); err != nil {
			return err
		}
		log.Printf("Requeued outbox entry %s", outboxRequeueID)
		return nil
	},
}

func init() {
	outboxRequeueCmd.Flags().StringVar(&outboxRequeueID, "id", "", "Outbox entry id (required)")
	_ = outboxRequeueCmd.MarkFlagRequired("id")

	outboxCmd.AddCommand(outboxQuarantinedCmd)
	outboxCmd.AddCommand(outboxRequeueCmd)
	rootCmd.AddCommand(outboxCmd)
}
