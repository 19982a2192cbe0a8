package main

import (
	"fmt"

	"github.com/localcore/client/pkg/netqueue"
	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the offline outbound request queue",
}

func init() {
	queueEnqueueCmd.Flags().String("method", "GET", "HTTP method")
	queueEnqueueCmd.Flags().String("body", "", "Request body")
	queueEnqueueCmd.Flags().String("priority", "normal", "Priority: low, normal, high, critical")
	queueEnqueueCmd.Flags().String("tag", "", "Optional grouping tag")
	queueListCmd.Flags().Int("limit", 50, "Maximum requests to list")
	queueDequeueCmd.Flags().Uint8("quality", 100, "Simulated connection quality score (0-100)")

	queueCmd.AddCommand(queueEnqueueCmd, queueListCmd, queueDequeueCmd, queueSizeCmd, queueClearCmd)
}

func openQueue(cmd *cobra.Command) (*netqueue.Queue, error) {
	dbPath := fmt.Sprintf("%s/%s.queue.db", dataDir(cmd), appID(cmd))
	return netqueue.New(netqueue.Config{DBPath: dbPath})
}

func parsePriority(s string) netqueue.Priority {
	switch s {
	case "low":
		return netqueue.PriorityLow
	case "high":
		return netqueue.PriorityHigh
	case "critical":
		return netqueue.PriorityCritical
	default:
		return netqueue.PriorityNormal
	}
}

var queueEnqueueCmd = &cobra.Command{
	Use:   "enqueue <url>",
	Short: "Queue an outbound request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		method, _ := cmd.Flags().GetString("method")
		body, _ := cmd.Flags().GetString("body")
		priority, _ := cmd.Flags().GetString("priority")
		tag, _ := cmd.Flags().GetString("tag")

		id, err := q.Enqueue(netqueue.Method(method), args[0], "{}", body, parsePriority(priority), false, tag)
		if err != nil {
			return err
		}
		fmt.Printf("✓ queued %s\n", id)
		return nil
	},
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending requests in priority order",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		reqs, err := q.ListPending(limit)
		if err != nil {
			return err
		}
		for _, req := range reqs {
			fmt.Printf("%s  %-8s %-8s %s\n", req.ID, req.Priority, req.Method, req.URL)
		}
		return nil
	},
}

var queueDequeueCmd = &cobra.Command{
	Use:   "dequeue",
	Short: "Show the next request eligible to send at a given quality score",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		quality, _ := cmd.Flags().GetUint8("quality")
		req, err := q.Dequeue(quality)
		if err != nil {
			return err
		}
		if req == nil {
			fmt.Println("no request eligible at this quality score")
			return nil
		}
		fmt.Printf("%s  %s %s\n", req.ID, req.Method, req.URL)
		return nil
	},
}

var queueSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show the total number of queued requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		size, err := q.Size()
		if err != nil {
			return err
		}
		fmt.Println(size)
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the request queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := openQueue(cmd)
		if err != nil {
			return err
		}
		defer q.Close()

		if err := q.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ queue cleared")
		return nil
	},
}
