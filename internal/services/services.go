package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/database"
	"github.com/agentx/aichat/internal/providers/factory"
	"github.com/agentx/aichat/internal/repository/sqlstore"
)

// Services holds all service instances
type Services struct {
	// Primary service, all chat traffic goes through it
	Conversations *ConversationService

	Store    *ConfigStore
	Resolver *ConfigResolver
	Config   *ConfigService
	Health   *HealthMonitor

	// Providers exposes the registry with its metrics and breaker
	Providers *factory.Result
}

// NewServices creates all service instances over db. The global settings
// are loaded once here.
func NewServices(
	ctx context.Context,
	db *database.DB,
	providerSet *factory.Result,
	sealer *auth.KeySealer,
	language string,
	logger *logrus.Logger,
) (*Services, error) {
	store := NewConfigStore(sqlstore.NewConfigRepository(db.DB), logger)
	if err := store.Load(ctx); err != nil {
		return nil, err
	}
	resolver := NewConfigResolver(store, sealer)

	conversations := NewConversationService(
		sqlstore.NewConversationRepository(db.DB),
		sqlstore.NewChatRepository(db.DB),
		sqlstore.NewMessageRepository(db.DB),
		resolver,
		providerSet.Registry,
		sealer,
		language,
		logger,
	)

	logger.WithField("providers", providerSet.Registry.List()).Info("Services initialized")

	return &Services{
		Conversations: conversations,
		Store:         store,
		Resolver:      resolver,
		Config:        NewConfigService(store, sealer, providerSet.Registry, logger),
		Health:        NewHealthMonitor(db, providerSet.Metrics, providerSet.Breaker, logger),
		Providers:     providerSet,
	}, nil
}
