package llm

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/config"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino/components/model"
)

type LLM interface {
	Model() model.BaseChatModel
}

type ollamaLLM struct {
	model model.BaseChatModel
}

func InitLLM(ctx context.Context, cfg *config.Config) (LLM, error) {
	chatModel, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: cfg.LLM.Host + ":" + strconv.Itoa(cfg.LLM.Port),
		Model:   cfg.LLM.Model,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("init ollama chat model: %w", err)
	}
	return &ollamaLLM{model: chatModel}, nil
}

func (l *ollamaLLM) Model() model.BaseChatModel {
	return l.model
}
