package config

const (
	// TopicIngestTask is the NSQ topic for file ingestion runs.
	TopicIngestTask = "ingest.task"

	// ChannelIngest is the consumer channel for the ingest worker.
	ChannelIngest = "ingest-worker"
)
