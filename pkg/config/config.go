package config

import (
	"os"
	"strconv"
)

type Config struct {
	// API keys
	TogetherApiKey  string
	GoogleApiKey    string
	BraveApiKey     string
	FirecrawlApiKey string

	// Backing services
	DatabaseURL string
	RedisURL    string
	Port        string
	CoverBucket string

	// Models
	PlanningModel    string
	JSONModel        string
	SummaryModel     string
	LongSummaryModel string
	AnswerModel      string
	ImageModel       string
	EmbeddingModel   string

	// Research loop
	Budget             int
	MaxQueriesPerRound int
	MaxEvidenceExcerpt int

	// Evidence indexing
	ChunkSize      int
	ChunkOverlap   int
	CollectionName string
}

func Load() *Config {
	return &Config{
		TogetherApiKey:  getEnv("TOGETHER_API_KEY", ""),
		GoogleApiKey:    getEnv("GOOGLE_API_KEY", ""),
		BraveApiKey:     getEnv("BRAVE_API_KEY", ""),
		FirecrawlApiKey: getEnv("FIRECRAWL_API_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Port:        getEnv("PORT", "3000"),
		CoverBucket: getEnv("COVER_BUCKET", ""),

		PlanningModel:    getEnv("PLANNING_MODEL", "Qwen/Qwen2.5-72B-Instruct-Turbo"),
		JSONModel:        getEnv("JSON_MODEL", "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo"),
		SummaryModel:     getEnv("SUMMARY_MODEL", "meta-llama/Llama-3.3-70B-Instruct-Turbo"),
		LongSummaryModel: getEnv("LONG_SUMMARY_MODEL", "meta-llama/Llama-4-Scout-17B-16E-Instruct"),
		AnswerModel:      getEnv("ANSWER_MODEL", "deepseek-ai/DeepSeek-V3"),
		ImageModel:       getEnv("IMAGE_MODEL", "black-forest-labs/FLUX.1-dev"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),

		Budget:             getEnvAsInt("RESEARCH_BUDGET", 2),
		MaxQueriesPerRound: getEnvAsInt("MAX_QUERIES_PER_ROUND", 2),
		MaxEvidenceExcerpt: getEnvAsInt("MAX_EVIDENCE_EXCERPT", 200),

		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
		CollectionName: getEnv("COLLECTION_NAME", "research_evidence"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
