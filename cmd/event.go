package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/core/events"
	"github.com/frahmantamala/payment-gateway/internal/observability"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test payment events and inspect their handlers`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a test payment processed event",
	Long:  `Publish a payment processed event to an in-process bus with the metrics handler attached, for debugging handlers`,
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent()
	},
}

var (
	eventStatus   string
	eventCurrency string
	eventAmount   int64
	eventMerchant string
	eventAsync    bool
)

func publishTestEvent() {
	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)
	metrics := observability.NewMetrics()
	metrics.RegisterEventHandlers(eventBus)

	eventBus.Subscribe(events.EventTypePaymentProcessed, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	})

	testEvent := events.NewPaymentProcessedEvent(uuid.NewString(), eventMerchant, eventStatus, eventCurrency, eventAmount, "")

	lg.Info("publishing test event", "event_type", testEvent.EventType(), "event_id", testEvent.EventID())

	publish := eventBus.PublishSync
	if eventAsync {
		publish = eventBus.Publish
	}
	if err := publish(context.Background(), testEvent); err != nil {
		lg.Error("failed to publish event", "error", err)
		return
	}

	eventBus.Wait()
	lg.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().StringVar(&eventStatus, "status", "Authorized", "transaction status carried by the event")
	publishEventCmd.Flags().StringVar(&eventCurrency, "currency", "GBP", "currency carried by the event")
	publishEventCmd.Flags().Int64Var(&eventAmount, "amount", 1050, "amount in minor units")
	publishEventCmd.Flags().StringVar(&eventMerchant, "merchant", "merchant-demo", "merchant id carried by the event")

	publishEventCmd.Flags().BoolVar(&eventAsync, "async", false, "dispatch handlers asynchronously as the server does")

	eventCmd.AddCommand(publishEventCmd)
}
