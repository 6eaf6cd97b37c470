package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "business:knowledge:"

// DefaultMaxPromptChars caps the context handed to the agent.
const DefaultMaxPromptChars = 4000

// Store persists pre-formatted business knowledge snippets in Redis lists.
type Store struct {
	client   redis.Cmdable
	maxChars int
}

func NewStore(client redis.Cmdable, maxChars int) *Store {
	if client == nil {
		panic("knowledge: redis client cannot be nil")
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}
	return &Store{client: client, maxChars: maxChars}
}

func key(businessID string) string {
	return keyPrefix + strings.TrimSpace(businessID)
}

// Append pushes new snippets onto the business's list.
func (s *Store) Append(ctx context.Context, businessID string, docs ...string) error {
	args := cleanDocs(docs)
	if len(args) == 0 {
		return nil
	}
	if err := s.client.RPush(ctx, key(businessID), args...).Err(); err != nil {
		return fmt.Errorf("knowledge: append: %w", err)
	}
	return nil
}

// Replace overwrites all snippets for the business.
func (s *Store) Replace(ctx context.Context, businessID string, docs ...string) error {
	k := key(businessID)
	args := cleanDocs(docs)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)
	if len(args) > 0 {
		pipe.RPush(ctx, k, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("knowledge: replace: %w", err)
	}
	return nil
}

// Documents returns every snippet for the business in insertion order.
func (s *Store) Documents(ctx context.Context, businessID string) ([]string, error) {
	docs, err := s.client.LRange(ctx, key(businessID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("knowledge: documents: %w", err)
	}
	return docs, nil
}

// ContextPrompt joins the business's snippets into one block, truncated on a snippet
// boundary. An unknown business yields "".
func (s *Store) ContextPrompt(ctx context.Context, businessID string) (string, error) {
	if strings.TrimSpace(businessID) == "" {
		return "", nil
	}
	docs, err := s.Documents(ctx, businessID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, d := range docs {
		need := len(d)
		if b.Len() > 0 {
			need += 2
		}
		if b.Len()+need > s.maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d)
	}
	return b.String(), nil
}

func cleanDocs(docs []string) []interface{} {
	args := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			args = append(args, d)
		}
	}
	return args
}
