package envvar

const (
	// LektorEnv is the environment variable used to determine the environment
	LektorEnv = "LEKTOR_ENV"

	// LektorServerHTTPPort is the environment variable used to determine the HTTP port
	LektorServerHTTPPort = "LEKTOR_SERVER_HTTP_PORT"

	// LektorServerGRPCPort is the environment variable used to determine the gRPC port
	LektorServerGRPCPort = "LEKTOR_SERVER_GRPC_PORT"

	// TTSModelsDir is the environment variable holding the root directory for models and datasets
	TTSModelsDir = "TTS_MODELS_DIR"

	// LektorNATSURL is the environment variable used to enable NATS storage and events
	LektorNATSURL = "LEKTOR_NATS_URL"

	// LektorLogLevel is the environment variable used to set the log level
	LektorLogLevel = "LEKTOR_LOG_LEVEL"
)
