// Package eventlog is the Kafka-backed event log: a producer publishing
// price-update and deal-update events keyed by product code, and two
// independent consumer cohorts that persist them downstream.
package eventlog

const (
	// TopicPriceUpdates carries types.PriceUpdateEvent payloads.
	TopicPriceUpdates = "price-updates"
	// TopicDealUpdates carries types.DealUpdateEvent payloads.
	TopicDealUpdates = "deal-updates"

	// GroupPriceConsumer is the price-update consumer cohort's group id.
	GroupPriceConsumer = "keeper-consumer-group"
	// GroupDealConsumer is the deal-update consumer cohort's group id.
	GroupDealConsumer = "keeper-consumer-group-deals"
)
