package bootstrap

import (
	"context"
	"time"

	"triage_server/adapter/out/messaging"
	"triage_server/adapter/out/mongodb"
	"triage_server/config"
	"triage_server/core/agent/llm"
	"triage_server/core/agent/rag"
	"triage_server/core/port/out"
	"triage_server/core/service/triage"
	"triage_server/infra/database"
	"triage_server/pkg/cache"
	"triage_server/pkg/logger"
	"triage_server/pkg/resilience"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	indexBuildTimeout    = 2 * time.Minute
	ensureIndexTimeout   = 10 * time.Second
	embeddingCachePrefix = "triage"
	offlineEmbedderName  = "hash-512"
)

type Dependencies struct {
	Config  *config.Config
	MongoDB *mongo.Client
	Redis   *redis.Client

	// Repositories
	EmailRepo *mongodb.EmailAdapter

	// Cache
	Cache *cache.RedisCache

	// Messaging
	MessageProducer out.MessageProducer

	// Agent
	LLMClient *llm.Client
	Retriever *rag.Retriever

	// Services
	TriageService *triage.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// MongoDB
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	})
	logger.Info("MongoDB connected: %s", cfg.MongoDBName)

	deps.EmailRepo = mongodb.NewEmailAdapter(mongoClient.Database(cfg.MongoDBName))
	func() {
		ctx, cancel := context.WithTimeout(context.Background(), ensureIndexTimeout)
		defer cancel()
		if err := deps.EmailRepo.EnsureIndexes(ctx); err != nil {
			logger.WithError(err).Warn("failed to ensure email indexes")
		}
	}()

	// Redis (optional: embedding cache and async ingestion)
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis connection failed: %v", err)
		} else {
			deps.Redis = redisClient
			cleanups = append(cleanups, func() { redisClient.Close() })
			deps.Cache = cache.NewRedisCache(redisClient, embeddingCachePrefix)
			deps.MessageProducer = messaging.NewRedisProducer(redisClient)
			logger.Info("Redis connected (embedding cache, ingest stream)")
		}
	}

	// Generative model
	var (
		generator     out.Generator
		embedder      out.Embedder
		embedderModel string
	)
	if cfg.OpenAIAPIKey != "" {
		breakerCfg := resilience.DefaultBreakerConfig("openai")
		breakerCfg.ConsecutiveFailures = uint32(cfg.LLMBreakerFailures)
		breakerCfg.Timeout = time.Duration(cfg.LLMBreakerTimeoutSec) * time.Second

		deps.LLMClient = llm.NewClientWithConfig(llm.ClientConfig{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.LLMModel,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.LLMTimeout(),
			Breaker:        resilience.NewBreaker(breakerCfg),
		})
		generator = deps.LLMClient
		embedder = deps.LLMClient
		embedderModel = cfg.EmbeddingModel
		logger.Info("LLM client initialized: %s / %s", cfg.LLMModel, cfg.EmbeddingModel)
	} else {
		embedder = rag.NewHashEmbedder(rag.DefaultHashDimensions)
		embedderModel = offlineEmbedderName
		logger.Warn("OPENAI_API_KEY not set, using heuristic extraction, keyword sentiment and template replies")
	}

	// Knowledge base
	retriever, err := buildRetriever(cfg, deps.Cache, embedder, embedderModel)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Retriever = retriever

	// Triage pipeline
	var (
		extractStrategy   triage.ExtractStrategy
		sentimentStrategy triage.SentimentStrategy
	)
	if generator != nil {
		extractStrategy = triage.NewLLMExtractor(generator)
		sentimentStrategy = triage.NewLLMSentiment(generator)
	}

	deps.TriageService = triage.NewService(triage.Deps{
		Repo:       deps.EmailRepo,
		Extractor:  triage.NewFieldExtractor(extractStrategy, triage.NewHeuristicExtractor(cfg.ExtractionUrgencyKeywords)),
		Classifier: triage.NewSentimentClassifier(sentimentStrategy),
		Scorer:     triage.NewPriorityScorer(cfg.ScoringUrgencyKeywords, triage.WithVIPSenders(cfg.VIPSenders)),
		Retriever:  deps.Retriever,
		Drafter:    triage.NewReplyDrafter(generator),
		TopK:       cfg.RetrievalTopK,
	})

	return deps, cleanup, nil
}

// buildRetriever embeds the corpus once. If the remote embedder fails at startup
// the index is rebuilt with the offline embedder so queries and corpus share a space.
func buildRetriever(cfg *config.Config, c *cache.RedisCache, embedder out.Embedder, model string) (*rag.Retriever, error) {
	docs := rag.DefaultCorpus()
	if cfg.KnowledgeBasePath != "" {
		loaded, err := rag.LoadCorpus(cfg.KnowledgeBasePath)
		if err != nil {
			return nil, err
		}
		docs = loaded
	}

	if c != nil {
		embedder = rag.NewCachedEmbedder(embedder, c, model, cfg.EmbeddingCacheTTL())
	}

	ctx, cancel := context.WithTimeout(context.Background(), indexBuildTimeout)
	defer cancel()

	start := time.Now()
	index, err := rag.BuildIndex(ctx, embedder, docs)
	if err != nil {
		logger.WithError(err).Warn("knowledge base embedding failed, falling back to %s", offlineEmbedderName)
		embedder = rag.NewHashEmbedder(rag.DefaultHashDimensions)
		if index, err = rag.BuildIndex(ctx, embedder, docs); err != nil {
			return nil, err
		}
	}

	logger.WithDuration(time.Since(start)).Info("knowledge base indexed: %d documents", index.Len())
	return rag.NewRetriever(embedder, index), nil
}
