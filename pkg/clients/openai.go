package clients

import (
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/mikeboe/answer-agent/pkg/config"
)

// OpenAI builds the generation backend from the LLM configuration. Plain
// OpenAI is the default; setting AZURE_OPENAI_ENDPOINT switches to an Azure
// deployment, where the model name is the deployment name.
func OpenAI(cfg config.LLMConfig) (*openai.LLM, error) {
	if endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT"); endpoint != "" {
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_API_KEY is not set")
		}
		deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")
		if deployment == "" {
			deployment = cfg.Model
		}
		apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")
		if apiVersion == "" {
			apiVersion = "2024-02-15-preview"
		}

		llm, err := openai.New(
			openai.WithAPIType(openai.APITypeAzure),
			openai.WithBaseURL(endpoint),
			openai.WithToken(apiKey),
			openai.WithModel(deployment),
			openai.WithAPIVersion(apiVersion),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to init Azure OpenAI client: %w", err)
		}
		return llm, nil
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}

	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init OpenAI client: %w", err)
	}
	return llm, nil
}
