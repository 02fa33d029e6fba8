package setup

import (
	"github.com/itchan-dev/mediadesk/backend/internal/agent"
	"github.com/itchan-dev/mediadesk/backend/internal/handler"
	"github.com/itchan-dev/mediadesk/backend/internal/service"
	"github.com/itchan-dev/mediadesk/backend/internal/storage/fs"
	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

// Dependencies struct to hold all initialized dependencies.
type Dependencies struct {
	Storage *fs.Storage
	Handler *handler.Handler
	Chat    *service.Chat
	Public  config.Public
}

// SetupDependencies initializes the media library, the chat relay and the handler.
// Leftover temp files from a previous run are removed.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := fs.New(cfg.Public.Media.Root)
	if err != nil {
		return nil, err
	}

	media := service.NewMedia(storage)
	if _, err := media.ClearTemp(); err != nil {
		logger.Log.Warn("failed to clean temp files on start", "component", "media", "error", err)
	}

	if cfg.Public.Chat.Agent.Command == "" {
		logger.Log.Warn("no agent command configured, chat replies will be apologies", "component", "chat")
	}
	runner := agent.NewExec(cfg.Public.Chat.Agent, cfg.Private.AgentEnv)
	chat := service.NewChat(runner, storage, cfg.Public.Chat.Async)

	h := handler.New(media, chat, cfg.Public.Media.MaxUploadBytes)

	return &Dependencies{
		Storage: storage,
		Handler: h,
		Chat:    chat,
		Public:  cfg.Public,
	}, nil
}
