package gateway

import (
	"log"

	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/config"
	"github.com/lazycook/chat-platform/internal/plan"
)

// NewRegistry registers one provider per model family. With
// GATEWAY_BACKEND=ollama both families go to the local Ollama instance.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	switch cfg.GatewayBackend {
	case "ollama":
		local := ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.GatewayTimeout)
		reg.RegisterProvider(string(plan.Gemini), local)
		reg.RegisterProvider(string(plan.Grok), local)
		log.Printf("gateway backend=ollama url=%s model=%s", cfg.OllamaBaseURL, cfg.OllamaModel)
	default:
		reg.RegisterProvider(string(plan.Gemini),
			ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GatewayTimeout))
		reg.RegisterProvider(string(plan.Grok),
			ai.NewCompatProvider("grok", cfg.GrokBaseURL, cfg.GrokAPIKey, cfg.GrokModel, cfg.GatewayTimeout))
		if cfg.GeminiAPIKey == "" {
			log.Printf("gateway warning: GEMINI_API_KEY not set, gemini calls will fail")
		}
		if cfg.GrokAPIKey == "" {
			log.Printf("gateway warning: GROK_API_KEY not set, grok calls will fail")
		}
	}
	return reg
}
