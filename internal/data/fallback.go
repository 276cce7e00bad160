package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// KnowledgeBaseEntry is a curated answer used when the AI backend cannot be
// reached. Keywords is a comma-separated match list.
type KnowledgeBaseEntry struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Category  string `gorm:"size:64;index"`
	Keywords  string `gorm:"size:512"`
	Content   string `gorm:"type:text"`
	UpdatedAt time.Time
}

// TableName sets the table name for GORM.
func (KnowledgeBaseEntry) TableName() string {
	return "ai_knowledge_base"
}

// templateResponse is the last resort when neither a cached answer nor a
// knowledge-base entry matches.
const templateResponse = "The AI assistant is temporarily unavailable. " +
	"In the meantime, you can browse the project catalog, check the FAQ, " +
	"or contact your supervisor directly. Please try your question again in a few minutes."

// FallbackRepo implements the service FallbackStore interface. Lookup order:
// cached responses in Redis, then knowledge-base entries in MySQL, then a
// static template. The chain prefers availability: storage failures fall
// through to the next source instead of erroring.
type FallbackRepo struct {
	db     *gorm.DB
	cache  CacheClient
	logger *log.Helper
}

// NewFallbackRepo creates a new fallback content repository.
func NewFallbackRepo(data *Data, db *gorm.DB, logger log.Logger) *FallbackRepo {
	return &FallbackRepo{
		db:     db,
		cache:  data.GetCache(),
		logger: log.NewHelper(logger),
	}
}

// fallbackKey hashes the normalized query into a cache key.
func fallbackKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s:%s", CacheKeyFallback, hex.EncodeToString(sum[:16]))
}

// LookupFallbackResponse returns the best degraded answer for the query.
func (r *FallbackRepo) LookupFallbackResponse(ctx context.Context, query string) (*model.FallbackResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Cached response from an earlier successful AI answer
	var cached string
	err := r.cache.Get(ctx, fallbackKey(query), &cached)
	if err == nil && cached != "" {
		return &model.FallbackResponse{Content: cached, Source: "cache"}, nil
	}
	if err != nil && !errors.Is(err, ErrCacheNotFound) {
		r.logger.Warnf("fallback cache lookup failed: %v (trying knowledge base)", err)
	}

	// 2. Knowledge base keyword match
	if entry, ok := r.lookupKnowledgeBase(ctx, query); ok {
		return &model.FallbackResponse{Content: entry.Content, Source: "knowledge_base"}, nil
	}

	// 3. Static template
	return &model.FallbackResponse{Content: templateResponse, Source: "template"}, nil
}

// lookupKnowledgeBase scores entries by keyword overlap with the query and
// returns the best match, if any keyword matched at all.
func (r *FallbackRepo) lookupKnowledgeBase(ctx context.Context, query string) (*KnowledgeBaseEntry, bool) {
	var entries []KnowledgeBaseEntry
	if err := r.db.WithContext(ctx).Find(&entries).Error; err != nil {
		r.logger.Warnf("knowledge base lookup failed: %v (falling back to template)", err)
		return nil, false
	}

	queryWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) >= 3 {
			queryWords[w] = true
		}
	}

	var best *KnowledgeBaseEntry
	bestScore := 0
	for i := range entries {
		score := 0
		for _, kw := range strings.Split(strings.ToLower(entries[i].Keywords), ",") {
			if queryWords[strings.TrimSpace(kw)] {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = &entries[i]
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// StoreFallbackResponse caches a successful AI answer so it can serve later
// requests for the same question when the backend is down. Best effort.
func (r *FallbackRepo) StoreFallbackResponse(ctx context.Context, query, content string) {
	if content == "" {
		return
	}
	if err := r.cache.Set(ctx, fallbackKey(query), content, TTLFallback); err != nil {
		r.logger.Warnf("failed to cache fallback response: %v", err)
	}
}
