package dchat

// Application identity and config discovery defaults.
const (
	DefaultAppName    = "docuchat"
	DefaultConfigPath = "$HOME/.config/docuchat"
)

// Server defaults.
const (
	DefaultServerAddr      = ":8080"
	DefaultShutdownTimeout = 10 // seconds
)

// Conversation history defaults. MaxMessages is user-tunable between
// MinMaxMessages and MaxMaxMessages; the UI slider moves in steps of
// MaxMessagesStep.
const (
	DefaultMaxMessages = 10
	MinMaxMessages     = 3
	MaxMaxMessages     = 20
	MaxMessagesStep    = 5

	DefaultHistoryStrategy = "pairs"

	DefaultTokenWarnLimit = 4000
	WarnFraction          = 0.8
)

// Agent dependency defaults, overridable per deployment.
const (
	DefaultAgentProvider  = "scripted"
	DefaultVectorDBPath   = "./chroma_db"
	DefaultCollectionName = "docs"
	DefaultEmbeddingModel = "all-MiniLM-L6-v2"
)

// Rate limiting and render cache defaults.
const (
	DefaultTurnRatePerMin  = 30
	DefaultTurnBurst       = 5
	DefaultRenderCacheSize = 512
	DefaultRenderCacheTTL  = 300 // seconds
)

// DefaultLogLevel is the zerolog level used when config and flags are silent.
const DefaultLogLevel = "info"
