package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"LanFM/config"
	"LanFM/store"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Test the Redis backend connection",
	Long:  `Connect to the configured Redis instance and run a basic read/write check.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("Redis: %s, DB %d\n", cfg.RedisAddr, cfg.RedisDB)

		client, err := store.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		defer client.Close()
		fmt.Println("Connected.")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		const key = "lanfm:selftest"
		if err := client.Set(ctx, key, "ok", time.Minute).Err(); err != nil {
			log.Fatalf("SET failed: %v", err)
		}
		val, err := client.Get(ctx, key).Result()
		if err != nil {
			log.Fatalf("GET failed: %v", err)
		}
		if val != "ok" {
			log.Fatalf("unexpected value: %q", val)
		}
		if err := client.Del(ctx, key).Err(); err != nil {
			log.Fatalf("DEL failed: %v", err)
		}

		fmt.Println("Read/write check passed.")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
