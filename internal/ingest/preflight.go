package ingest

import (
	"context"
	"fmt"
	"os"

	"github.com/concept-rag/conceptrag/internal/llm"
)

// Preflight validates the LLM API key before any ingestion writes happen,
// per spec.md section 6: "Preflight check sends a 1-token request and
// expects HTTP 200; HTTP 401/403 aborts with exit code 1" and section 4.3
// step 7's "API key preflight-validated before the batch starts."
func Preflight(ctx context.Context, apiKeyEnv string, client *llm.Client) error {
	if os.Getenv(apiKeyEnv) == "" {
		return fmt.Errorf("%s is not set; ingestion requires an LLM API key (spec.md section 6)", apiKeyEnv)
	}
	if err := client.Preflight(ctx); err != nil {
		return fmt.Errorf("LLM preflight check failed: %w", err)
	}
	return nil
}
