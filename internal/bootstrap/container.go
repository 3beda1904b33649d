package bootstrap

import (
	"context"
	"fmt"
	"log"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/handler"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/implementation"
	"ai-assistant-be/internal/repository/memory"
	redisRepo "ai-assistant-be/internal/repository/redis"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/internal/service"
	"ai-assistant-be/internal/websocket"
	"ai-assistant-be/pkg/embedding/factory"
	"ai-assistant-be/pkg/events"
	"ai-assistant-be/pkg/extractor"
	llmFactory "ai-assistant-be/pkg/llm/factory"
	pktNats "ai-assistant-be/pkg/nats"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	SessionStorePostgres = "postgres"
	SessionStoreRedis    = "redis"
	SessionStoreMemory   = "memory"
)

type Container struct {
	AssistantController controller.IAssistantController
	DocumentController  controller.IDocumentController
	ChatbotController   controller.IChatbotController
	WebsocketHandler    *handler.WebsocketHandler

	// Background workers, started by main.
	ConsumerService     service.IConsumerService
	NotificationService *service.NotificationService
	WebSocketHub        *websocket.Hub

	closers []func()
}

// Close releases broker connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// NewContainer wires the application. db may be nil when SESSION_STORE is
// "memory", in which case every repository lives in process.
func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	c := &Container{}
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 1. Repositories
	var uowFactory unitofwork.RepositoryFactory
	var chunks contract.ChunkRepository
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
		chunks = implementation.NewChunkRepository(db)
	} else {
		store := memory.NewStore()
		uowFactory = store
		chunks = store.Chunks
	}

	rdb := newRedisClient(cfg.Redis.URL)

	var sessions contract.ChatSessionRepository
	var locker contract.SessionLocker
	switch cfg.Rag.SessionStore {
	case SessionStorePostgres:
		if db == nil {
			return nil, fmt.Errorf("session store %q needs DB_CONNECTION_STRING", cfg.Rag.SessionStore)
		}
		sessions = implementation.NewChatSessionRepository(db)
	case SessionStoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("session store %q needs REDIS_URL", cfg.Rag.SessionStore)
		}
		sessions = redisRepo.NewSessionRepository(rdb, cfg.Redis.SessionTTL)
	case SessionStoreMemory:
		sessions = memory.NewSessionRepository(cfg.Redis.SessionTTL)
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Rag.SessionStore)
	}

	// Several instances only serialize a session through redis.
	if rdb != nil {
		locker = redisRepo.NewSessionLock(rdb, cfg.Rag.SessionLockTimeout, 0)
	} else {
		locker = memory.NewSessionLocker()
	}

	// 2. Providers
	embeddingProvider, err := factory.NewEmbeddingProvider(cfg)
	if err != nil {
		return nil, err
	}
	llmProvider, err := llmFactory.NewLLMProvider(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s), Embedding Provider: %s", cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.EmbeddingProvider)

	// 3. Event bus
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	var natsPub *pktNats.Publisher
	var natsSub *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			c.closers = append(c.closers, natsPub.Close)
		}
		natsSub, err = pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.closers = append(c.closers, natsSub.Close)
		}
	}

	notifService := service.NewNotificationService(natsSub, wsHub, wsLogger)

	// Events go over NATS when both sides are up, otherwise straight to
	// the local hub.
	var publisher events.Publisher = notifService
	if natsPub != nil && natsSub != nil {
		publisher = natsPub
	}

	// 4. Engine
	retriever := search.NewRetriever(embeddingProvider, chunks, sysLogger)
	pipeline, err := executor.NewPipeline(llmProvider, retriever, executor.NewConfig(cfg), sysLogger)
	if err != nil {
		return nil, err
	}

	// 5. Services
	publisherService := service.NewPublisherService(cfg.Keys.IndexDocumentTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.IndexDocumentTopic,
		uowFactory,
		embeddingProvider,
		extractor.NewRegistry(),
		publisher,
		service.IndexingOptions{
			ChunkSize:    cfg.Rag.ChunkSize,
			ChunkOverlap: cfg.Rag.ChunkOverlap,
			BatchSize:    cfg.Rag.EmbedBatchSize,
			Concurrency:  cfg.Rag.EmbedConcurrency,
		},
		sysLogger,
	)

	assistantService := service.NewAssistantService(uowFactory, sysLogger)
	documentService := service.NewDocumentService(uowFactory, publisherService, sysLogger)
	chatbotService := service.NewChatbotService(
		uowFactory,
		sessions,
		locker,
		pipeline,
		publisher,
		service.ChatbotOptions{
			HistoryLimit: cfg.Rag.HistoryLimit,
			LockTimeout:  cfg.Rag.SessionLockTimeout,
		},
		sysLogger,
	)

	// 6. Transport
	c.AssistantController = controller.NewAssistantController(assistantService)
	c.DocumentController = controller.NewDocumentController(documentService)
	c.ChatbotController = controller.NewChatbotController(chatbotService, sysLogger)
	c.WebsocketHandler = handler.NewWebsocketHandler(chatbotService, wsHub, cfg.Keys.JwtSecret, wsLogger)

	c.ConsumerService = consumerService
	c.NotificationService = notifService
	c.WebSocketHub = wsHub
	c.closers = append(c.closers, func() { _ = pubSub.Close() })

	return c, nil
}

// newRedisClient returns nil when redis is not configured or unreachable.
func newRedisClient(url string) *redis.Client {
	if url == "" {
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
