package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/incidentnow/incident-service/internal/config"
	"github.com/incidentnow/incident-service/internal/database"
	"github.com/incidentnow/incident-service/internal/events"
	"github.com/incidentnow/incident-service/internal/model"
	"github.com/incidentnow/incident-service/internal/notify"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var replayEventsCmd = &cobra.Command{
	Use:   "replay-events",
	Short: "Re-emit all incidents as incident.updated events. Prefers Kafka; falls back to webhook if WEBHOOK_URL set.",
	RunE:  runReplayEvents,
}

func init() {
	rootCmd.AddCommand(replayEventsCmd)
}

func runReplayEvents(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../../.env") // repo root when running from bin/
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	conn, err := database.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}

	var incidents []model.Incident
	if err := conn.Find(&incidents).Error; err != nil {
		return fmt.Errorf("list incidents: %w", err)
	}
	log.Printf("replay-events: found %d incidents", len(incidents))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	payloadFor := func(inc *model.Incident) map[string]interface{} {
		return map[string]interface{}{
			"incident_id":     inc.ID.String(),
			"incident_number": inc.IncidentNumber,
			"title":           inc.Title,
			"status":          string(inc.Status),
			"priority":        string(inc.Priority),
			"severity":        string(inc.Severity),
		}
	}

	// Prefer Kafka, then webhook
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopicIncidents != "" {
		log.Println("replay-events: using Kafka")
		producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicIncidents)
		defer producer.Close()
		for i := range incidents {
			producer.ProduceIncidentEvent(ctx, "incident.updated", payloadFor(&incidents[i]))
			if (i+1)%50 == 0 || i == len(incidents)-1 {
				log.Printf("replay-events: sent %d/%d events to Kafka", i+1, len(incidents))
			}
		}
		log.Printf("replay-events: done, sent %d events to Kafka", len(incidents))
		return nil
	}
	if cfg.WebhookURL != "" {
		log.Println("replay-events: using webhook")
		client := notify.NewClient(cfg.WebhookURL)
		for i := range incidents {
			client.Notify(ctx, "incident.updated", payloadFor(&incidents[i]))
			if (i+1)%50 == 0 || i == len(incidents)-1 {
				log.Printf("replay-events: notified %d/%d", i+1, len(incidents))
			}
		}
		log.Printf("replay-events: done, notified %d incidents via webhook", len(incidents))
		return nil
	}
	log.Println("replay-events: neither KAFKA_BROKERS nor WEBHOOK_URL set")
	log.Printf("replay-events: found %d incidents (nothing emitted)", len(incidents))
	return nil
}
